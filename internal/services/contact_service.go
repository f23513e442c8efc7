package services

import (
	"context"
	"fmt"
	"log"
	"strings"

	"birdpage/internal/models"
	"birdpage/pkg/contacts"
)

// ContactService registers visitors with the email vendor.
type ContactService struct {
	client        ContactCreator
	unlocks       *UnlockService
	source        string
	paywallCohort string
}

// NewContactService creates a new ContactService. source tags every contact;
// paywallCohort additionally tags contacts created by an email unlock.
func NewContactService(client ContactCreator, unlocks *UnlockService, source, paywallCohort string) *ContactService {
	return &ContactService{
		client:        client,
		unlocks:       unlocks,
		source:        source,
		paywallCohort: paywallCohort,
	}
}

// CreateContact registers email. Only a transport failure is reported; the
// vendor's answer is not inspected.
func (s *ContactService) CreateContact(ctx context.Context, email string) error {
	email = strings.TrimSpace(email)
	if _, err := s.client.CreateContact(ctx, contacts.Contact{
		Email:  email,
		Source: s.source,
	}); err != nil {
		return fmt.Errorf("failed to create contact: %w", err)
	}
	return nil
}

// UnlockGeneration registers email in the paywall cohort and, once the vendor
// accepted it, unlocks the page of username through the email channel.
func (s *ContactService) UnlockGeneration(ctx context.Context, username, email string) (*models.User, error) {
	email = strings.TrimSpace(email)
	resp, err := s.client.CreateContact(ctx, contacts.Contact{
		Email:     email,
		Source:    s.source,
		UserGroup: s.paywallCohort,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEmailService, err)
	}
	if err := resp.Err(); err != nil {
		log.Printf("Email vendor rejected contact for %s: %v", username, err)
		return nil, fmt.Errorf("%w: %w", ErrEmailService, err)
	}

	return s.unlocks.Unlock(ctx, username, models.UnlockEmail)
}
