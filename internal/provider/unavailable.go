package provider

import (
	"context"

	"go-funnel-metrics/internal/model"
	"go-funnel-metrics/internal/pipeline"
)

// Unavailable stands in for a provider that could not be constructed, so
// its branches report the construction error instead of disappearing.
type Unavailable struct {
	Err error
}

func (u Unavailable) FetchRecords(context.Context, pipeline.Query) ([]model.GenericRecord, error) {
	return nil, u.Err
}

func (u Unavailable) FetchTickets(context.Context, pipeline.Query) ([]model.GenericRecord, error) {
	return nil, u.Err
}

func (u Unavailable) FetchPayments(context.Context, pipeline.Query) ([]model.PaymentTransaction, error) {
	return nil, u.Err
}

func (u Unavailable) FetchFeedback(context.Context, pipeline.Query) ([]model.Feedback, error) {
	return nil, u.Err
}

func (u Unavailable) FetchProfiles(context.Context) ([]model.ProfessionalProfile, error) {
	return nil, u.Err
}

func (u Unavailable) FetchVisitors(context.Context, pipeline.Query) (model.VisitorStats, error) {
	return model.VisitorStats{}, u.Err
}
