package api

import (
	"context"
	"encoding/json"
	"time"

	validation "github.com/jellydator/validation"

	"github.com/google/uuid"

	authDomain "github.com/allisson/mediaportal/internal/auth/domain"
	apperrors "github.com/allisson/mediaportal/internal/errors"
	eventDomain "github.com/allisson/mediaportal/internal/event/domain"
	eventUsecase "github.com/allisson/mediaportal/internal/event/usecase"
	customValidation "github.com/allisson/mediaportal/internal/validation"
)

// Supported query operations.
const (
	OpEvent          = "event"
	OpEventsBySeries = "eventsBySeries"
	OpWritableEvents = "writableEvents"
	OpCurrentUser    = "currentUser"
)

// QueryRequest is the body of POST /query: one operation with its parameters.
type QueryRequest struct {
	Op     string          `json:"op"`
	Params json.RawMessage `json:"params,omitempty"`
}

// Validate checks that the requested operation exists.
func (r *QueryRequest) Validate() error {
	return customValidation.WrapValidationError(validation.ValidateStruct(r,
		validation.Field(&r.Op,
			validation.Required,
			customValidation.NotBlank,
			validation.In(OpEvent, OpEventsBySeries, OpWritableEvents, OpCurrentUser),
		),
	))
}

type eventParams struct {
	ID string `json:"id"`
}

func (p *eventParams) Validate() error {
	return customValidation.WrapValidationError(validation.ValidateStruct(p,
		validation.Field(&p.ID, validation.Required, customValidation.UUID),
	))
}

type eventsBySeriesParams struct {
	SeriesID string `json:"seriesId"`
}

func (p *eventsBySeriesParams) Validate() error {
	return customValidation.WrapValidationError(validation.ValidateStruct(p,
		validation.Field(&p.SeriesID, validation.Required, customValidation.UUID),
	))
}

// TrackResponse is the wire form of a media track.
type TrackResponse struct {
	URI        string  `json:"uri"`
	Flavor     string  `json:"flavor"`
	MimeType   *string `json:"mimetype,omitempty"`
	Resolution []int   `json:"resolution,omitempty"`
}

// EventResponse is the wire form of a catalog event. CanWrite is computed
// against the caller, not stored.
type EventResponse struct {
	ID          uuid.UUID       `json:"id"`
	SeriesID    *uuid.UUID      `json:"seriesId,omitempty"`
	Title       string          `json:"title"`
	Description *string         `json:"description,omitempty"`
	DurationMs  *int64          `json:"durationMs,omitempty"`
	Creator     *string         `json:"creator,omitempty"`
	Thumbnail   *string         `json:"thumbnail,omitempty"`
	Tracks      []TrackResponse `json:"tracks"`
	CanWrite    bool            `json:"canWrite"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

// UserResponse is the wire form of the current caller.
type UserResponse struct {
	Username    string   `json:"username"`
	DisplayName string   `json:"displayName"`
	Roles       []string `json:"roles"`
	CanUpload   bool     `json:"canUpload"`
	CanRecord   bool     `json:"canUseRecorder"`
	CanEdit     bool     `json:"canUseEditor"`
	IsModerator bool     `json:"canUseModeratorTools"`
	IsAdmin     bool     `json:"isAdmin"`
}

// Dispatcher turns query requests into executors. It is the only producer of
// business logic executors in the server; everything it runs happens inside
// the request scope that invokes it.
type Dispatcher struct {
	events eventUsecase.EventUseCase
}

// NewDispatcher creates a dispatcher over the catalog use case.
func NewDispatcher(events eventUsecase.EventUseCase) *Dispatcher {
	return &Dispatcher{events: events}
}

// Executor returns the executor for one query request. The request must have
// been validated already.
func (d *Dispatcher) Executor(req *QueryRequest) Executor {
	return ExecutorFunc(func(ctx context.Context, apiCtx *Context) (any, error) {
		switch req.Op {
		case OpEvent:
			return d.event(ctx, apiCtx, req.Params)
		case OpEventsBySeries:
			return d.eventsBySeries(ctx, apiCtx, req.Params)
		case OpWritableEvents:
			return d.writableEvents(ctx, apiCtx)
		case OpCurrentUser:
			return d.currentUser(apiCtx), nil
		default:
			return nil, apperrors.Wrap(apperrors.ErrInvalidInput, "unknown operation: "+req.Op)
		}
	})
}

func (d *Dispatcher) event(ctx context.Context, apiCtx *Context, rawParams json.RawMessage) (any, error) {
	var params eventParams
	if err := unmarshalParams(rawParams, &params); err != nil {
		return nil, err
	}

	event, err := d.events.Get(ctx, uuid.MustParse(params.ID), apiCtx.Identity)
	if err != nil {
		return nil, err
	}

	return toEventResponse(event, apiCtx.Identity), nil
}

func (d *Dispatcher) eventsBySeries(ctx context.Context, apiCtx *Context, rawParams json.RawMessage) (any, error) {
	var params eventsBySeriesParams
	if err := unmarshalParams(rawParams, &params); err != nil {
		return nil, err
	}

	events, err := d.events.ListBySeries(ctx, uuid.MustParse(params.SeriesID), apiCtx.Identity)
	if err != nil {
		return nil, err
	}

	return toEventResponses(events, apiCtx.Identity), nil
}

func (d *Dispatcher) writableEvents(ctx context.Context, apiCtx *Context) (any, error) {
	// The use case signature demands the proof, so this operation cannot
	// run without the capability check passing first.
	proof, err := apiCtx.Identity.RequireUpload(apiCtx.AuthConfig)
	if err != nil {
		return nil, err
	}

	events, err := d.events.ListWritable(ctx, apiCtx.Identity, proof)
	if err != nil {
		return nil, err
	}

	return toEventResponses(events, apiCtx.Identity), nil
}

func (d *Dispatcher) currentUser(apiCtx *Context) *UserResponse {
	identity := apiCtx.Identity
	if identity == nil {
		return nil
	}
	cfg := apiCtx.AuthConfig
	return &UserResponse{
		Username:    identity.Username,
		DisplayName: identity.DisplayName,
		Roles:       identity.EffectiveRoles(),
		CanUpload:   identity.CanUpload(cfg),
		CanRecord:   identity.CanUseRecorder(cfg),
		CanEdit:     identity.CanUseEditor(cfg),
		IsModerator: identity.CanUseModeratorTools(cfg),
		IsAdmin:     identity.IsAdmin(),
	}
}

// unmarshalParams decodes and validates operation parameters.
func unmarshalParams(raw json.RawMessage, params interface{ Validate() error }) error {
	if len(raw) == 0 {
		return apperrors.Wrap(apperrors.ErrInvalidInput, "missing operation parameters")
	}
	if err := json.Unmarshal(raw, params); err != nil {
		return apperrors.Wrap(apperrors.ErrInvalidInput, "malformed operation parameters: "+err.Error())
	}
	return params.Validate()
}

func toEventResponse(event *eventDomain.Event, identity *authDomain.Identity) *EventResponse {
	tracks := make([]TrackResponse, 0, len(event.Tracks))
	for _, track := range event.Tracks {
		tracks = append(tracks, TrackResponse(track))
	}
	return &EventResponse{
		ID:          event.ID,
		SeriesID:    event.SeriesID,
		Title:       event.Title,
		Description: event.Description,
		DurationMs:  event.DurationMs,
		Creator:     event.Creator,
		Thumbnail:   event.Thumbnail,
		Tracks:      tracks,
		CanWrite:    event.WritableBy(identity),
		CreatedAt:   event.CreatedAt,
		UpdatedAt:   event.UpdatedAt,
	}
}

func toEventResponses(events []*eventDomain.Event, identity *authDomain.Identity) []*EventResponse {
	responses := make([]*EventResponse, 0, len(events))
	for _, event := range events {
		responses = append(responses, toEventResponse(event, identity))
	}
	return responses
}
