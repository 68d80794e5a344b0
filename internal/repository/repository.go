package repository

// Package repository contains the read side of the relational records the gateway
// depends on. Implementations live in subpackages (e.g., postgres).

import "errors"

var (
	// ErrRecordNotFound is returned when a media record ID does not resolve.
	ErrRecordNotFound = errors.New("media record not found")
	// ErrPolicyNotFound is returned when no limits are stored for a category.
	ErrPolicyNotFound = errors.New("category policy not found")
)
