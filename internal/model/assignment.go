package model

import "time"

// Assignment is a single dated occurrence of a chore assigned to one child.
// Created by the scheduler, mutated by lifecycle transitions, and closed by
// the nightly sweep when left open past its due date.
type Assignment struct {
	ID              int64      `json:"id"`
	ChoreID         int64      `json:"chore_id"`
	AssignedTo      int64      `json:"assigned_to"`
	DueDate         time.Time  `json:"due_date"`
	PendingApproval bool       `json:"pending_approval"`
	Approved        bool       `json:"approved"`
	ApprovedAt      *time.Time `json:"approved_at"`
	IsCompleted     bool       `json:"is_completed"`
	CompletedAt     *time.Time `json:"completed_at"`
	Closed          bool       `json:"closed"`
	ClosedAt        *time.Time `json:"closed_at"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// Evidence holds a stored photo or video key attached to an assignment.
// Exactly one of PhotoKey/VideoKey is set.
type Evidence struct {
	ID           int64     `json:"id"`
	AssignmentID int64     `json:"assignment_id"`
	PhotoKey     string    `json:"-"`
	VideoKey     string    `json:"-"`
	PhotoURL     *string   `json:"photo_url"`
	VideoURL     *string   `json:"video_url"`
	CreatedAt    time.Time `json:"created_at"`
}
