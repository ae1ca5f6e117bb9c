// Package repository implements hand-written SQL data access on MySQL.
package repository

import "errors"

// ErrStudentExists is returned when registering a student number that is
// already taken.
var ErrStudentExists = errors.New("student number already exists")
