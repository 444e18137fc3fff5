package model

import (
	"github.com/fieldtoalert/field-to-alert/internal/model/entities"
	"github.com/fieldtoalert/field-to-alert/internal/model/messages"
)

// Aliases exposing the shared types to the services.

type (
	Zone            = entities.Zone
	SoilProfile     = entities.SoilProfile
	Depth           = entities.Depth
	CropBaseline    = entities.CropBaseline
	Thresholds      = entities.Thresholds
	RawObservation  = messages.RawObservation
	DecisionEvent   = messages.DecisionEvent
	IrrigationEvent = messages.IrrigationEvent

	ValidationError    = entities.ValidationError
	TemporalOrderError = entities.TemporalOrderError
	ConfigError        = entities.ConfigError
	ComputationError   = entities.ComputationError
)
