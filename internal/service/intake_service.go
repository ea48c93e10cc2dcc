package service

import (
	"context"
	"strings"

	"github.com/spec-kit/ops-ticket-bot/internal/domain"
	"github.com/spec-kit/ops-ticket-bot/pkg/util"
)

// Intake form input ids.
const (
	InputTeacher     = "teacher_requested"
	InputDirectLead  = "direct_lead"
	InputStemLead    = "stem_lead"
	InputDescription = "description"
	InputAttachments = "attachments"
)

// IntakeService turns commands and intake forms into tickets.
type IntakeService struct {
	lifecycle *LifecycleService
	messenger Messenger
}

func NewIntakeService(lifecycle *LifecycleService, messenger Messenger) *IntakeService {
	return &IntakeService{lifecycle: lifecycle, messenger: messenger}
}

// UsageHint tells users how to report an issue.
const UsageHint = "Please type your issue with the following pattern: `/hiops [write your issue/inquiry]`"

// ReportIssue opens a general ticket from free text.
func (s *IntakeService) ReportIssue(ctx context.Context, reporter domain.Party, text string) (*domain.Ticket, error) {
	return s.report(ctx, domain.CategoryGeneral, reporter, text)
}

// RaiseEmergency opens an emergency alert from free text.
func (s *IntakeService) RaiseEmergency(ctx context.Context, reporter domain.Party, text string) (*domain.Ticket, error) {
	return s.report(ctx, domain.CategoryEmergency, reporter, text)
}

func (s *IntakeService) report(ctx context.Context, c domain.Category, reporter domain.Party, text string) (*domain.Ticket, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, util.NewValidationError(UsageHint, nil)
	}
	return s.lifecycle.Open(ctx, OpenInput{Category: c, Reporter: reporter, Description: text})
}

// OpenSubstitutionForm shows the substitution request form.
func (s *IntakeService) OpenSubstitutionForm(ctx context.Context, triggerID string) error {
	return s.messenger.OpenForm(ctx, triggerID, Form{
		CallbackID: FormSubstitutionIntake,
		Title:      "Substitution request",
		Submit:     "Submit",
		Inputs: []Input{
			{ID: InputTeacher, Label: "Teacher requesting"},
			{ID: InputReplacement, Label: "Replacement teacher", Placeholder: "Leave empty if still looking", Optional: true},
			{ID: InputGrade, Label: "Grade"},
			{ID: InputSlot, Label: "Slot name"},
			{ID: InputClassDate, Label: "Class date", Placeholder: "YYYY-MM-DD"},
			{ID: InputClassTime, Label: "Class time", Placeholder: "HH:MM"},
			{ID: InputReason, Label: "Reason", Multiline: true},
			{ID: InputDirectLead, Label: "Direct lead", Optional: true},
			{ID: InputStemLead, Label: "STEM lead", Optional: true},
		},
	})
}

// SubmitSubstitution opens a substitution ticket from the submitted form.
func (s *IntakeService) SubmitSubstitution(ctx context.Context, reporter domain.Party, values map[string]string) (*domain.Ticket, error) {
	sub := &domain.SubstitutionDetails{
		Teacher:     strings.TrimSpace(values[InputTeacher]),
		Replacement: strings.TrimSpace(values[InputReplacement]),
		Grade:       strings.TrimSpace(values[InputGrade]),
		Slot:        strings.TrimSpace(values[InputSlot]),
		ClassDate:   strings.TrimSpace(values[InputClassDate]),
		ClassTime:   strings.TrimSpace(values[InputClassTime]),
		Reason:      strings.TrimSpace(values[InputReason]),
		DirectLead:  strings.TrimSpace(values[InputDirectLead]),
		StemLead:    strings.TrimSpace(values[InputStemLead]),
	}
	if sub.Teacher == "" || sub.ClassDate == "" {
		return nil, util.NewValidationError("teacher and class date are required", nil)
	}
	description := sub.Teacher + " needs a substitute on " + strings.TrimSpace(sub.ClassDate+" "+sub.ClassTime)
	return s.lifecycle.Open(ctx, OpenInput{
		Category:     domain.CategorySubstitution,
		Reporter:     reporter,
		Description:  description,
		Substitution: sub,
	})
}

// OpenHelpdeskForm shows the helpdesk request form.
func (s *IntakeService) OpenHelpdeskForm(ctx context.Context, triggerID string) error {
	return s.messenger.OpenForm(ctx, triggerID, Form{
		CallbackID: FormHelpdeskIntake,
		Title:      "Helpdesk request",
		Submit:     "Submit",
		Inputs: []Input{
			{ID: InputDescription, Label: "What do you need help with?", Multiline: true},
			{ID: InputAttachments, Label: "Attachment links", Placeholder: "One link per line", Multiline: true, Optional: true},
		},
	})
}

// SubmitHelpdesk opens a helpdesk ticket from the submitted form.
func (s *IntakeService) SubmitHelpdesk(ctx context.Context, reporter domain.Party, values map[string]string) (*domain.Ticket, error) {
	description := strings.TrimSpace(values[InputDescription])
	if description == "" {
		return nil, util.NewValidationError("a description is required", nil)
	}
	var attachments []string
	for _, line := range strings.Split(values[InputAttachments], "\n") {
		if line = strings.TrimSpace(line); line != "" {
			attachments = append(attachments, line)
		}
	}
	return s.lifecycle.Open(ctx, OpenInput{
		Category:    domain.CategoryHelpdesk,
		Reporter:    reporter,
		Description: description,
		Attachments: attachments,
	})
}
