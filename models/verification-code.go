package models

import "time"

type VerificationCode struct {
	ID           int       `json:"id"`
	UserID       int       `json:"user_id"`
	Code         string    `json:"code"`
	AttemptsUsed int       `json:"attempts_used"`
	IssuedAt     time.Time `json:"issued_at"`
	ExpiresAt    time.Time `json:"expires_at"`
}

func (vc *VerificationCode) IsExpired(now time.Time) bool {
	return !now.Before(vc.ExpiresAt)
}

func (vc *VerificationCode) AttemptsExhausted(maxAttempts int) bool {
	return vc.AttemptsUsed >= maxAttempts
}
