// SPDX-License-Identifier: Apache-2.0

package domain

import "errors"

var ErrPatientNotFound = errors.New("patient not found")
var ErrDuplicatePatientID = errors.New("duplicate patient id")
var ErrInvalidPatientName = errors.New("invalid patient name")
var ErrInvalidStatus = errors.New("invalid status value")
var ErrStatusRegression = errors.New("status cannot move backwards")
