// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package audit records admin mutations and authentication outcomes.
// Every event goes to the "audit" log component; an optional Sink keeps a
// queryable copy.
package audit

import (
	"context"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	xglog "github.com/BharathVasireddy/redstudio-nginx-rtmp/internal/log"
)

// EventType names an audited action.
type EventType string

const (
	EventLoginSuccess   EventType = "auth.login.success"
	EventLoginFailure   EventType = "auth.login.failure"
	EventLogout         EventType = "auth.logout"
	EventPublishDenied  EventType = "publish.denied"
	EventConfigSaved    EventType = "restream.saved"
	EventIngestKeySaved EventType = "ingest.saved"
	EventOverlayUpload  EventType = "overlay.upload"
	EventOverlayClear   EventType = "overlay.clear"
	EventOverlayDelete  EventType = "overlay.delete"
	EventApply          EventType = "apply.run"
	EventReconnect      EventType = "stream.reconnect"
	EventConfigReload   EventType = "config.reload"
)

// Result values.
const (
	ResultSuccess = "success"
	ResultFailure = "failure"
	ResultDenied  = "denied"
)

// Event is one audit record.
type Event struct {
	Timestamp  time.Time         `json:"timestamp"`
	Type       EventType         `json:"type"`
	Actor      string            `json:"actor"`
	Resource   string            `json:"resource"`
	Result     string            `json:"result"`
	RemoteAddr string            `json:"remote_addr,omitempty"`
	RequestID  string            `json:"request_id,omitempty"`
	Details    map[string]string `json:"details,omitempty"`
}

// Sink persists audit events.
type Sink interface {
	Write(ctx context.Context, ev Event) error
}

// Logger writes audit events.
type Logger struct {
	logger zerolog.Logger
	sink   Sink
	now    func() time.Time
}

// NewLogger returns a Logger. sink may be nil.
func NewLogger(sink Sink) *Logger {
	return &Logger{
		logger: xglog.WithComponent("audit").With().Str("log_type", "audit").Logger(),
		sink:   sink,
		now:    time.Now,
	}
}

// Record fills correlation fields from ctx and writes ev. Sink failures are
// logged and never reach the caller.
func (l *Logger) Record(ctx context.Context, ev Event) {
	if l == nil {
		return
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = l.now().UTC()
	}
	if ev.RequestID == "" {
		ev.RequestID = xglog.RequestIDFromContext(ctx)
	}
	if ev.Actor == "" {
		ev.Actor = xglog.UserFromContext(ctx)
	}
	if ev.Actor == "" {
		ev.Actor = "anonymous"
	}

	evt := l.logger.Info().
		Str(xglog.FieldEvent, string(ev.Type)).
		Str("actor", ev.Actor).
		Str("resource", ev.Resource).
		Str("result", ev.Result)
	if ev.RemoteAddr != "" {
		evt = evt.Str(xglog.FieldRemoteAddr, ev.RemoteAddr)
	}
	if ev.RequestID != "" {
		evt = evt.Str(xglog.FieldRequestID, ev.RequestID)
	}
	for k, v := range ev.Details {
		evt = evt.Str(k, v)
	}
	evt.Msg("audit event")

	if l.sink == nil {
		return
	}
	if err := l.sink.Write(ctx, ev); err != nil {
		l.logger.Warn().Err(err).
			Str(xglog.FieldEvent, "audit.sink_failed").
			Str("type", string(ev.Type)).
			Msg("audit sink write failed")
	}
}

// Login records a login attempt.
func (l *Logger) Login(ctx context.Context, user, remoteAddr string, ok bool) {
	ev := Event{Type: EventLoginSuccess, Actor: user, Resource: "/api/login", Result: ResultSuccess, RemoteAddr: remoteAddr}
	if !ok {
		ev.Type = EventLoginFailure
		ev.Result = ResultDenied
	}
	if ev.Actor == "" {
		ev.Actor = remoteAddr
	}
	l.Record(ctx, ev)
}

// Mutation records an admin change to resource. A non-nil err marks it failed.
func (l *Logger) Mutation(ctx context.Context, typ EventType, resource string, err error, details map[string]string) {
	ev := Event{Type: typ, Resource: resource, Result: ResultSuccess, Details: details}
	if err != nil {
		ev.Result = ResultFailure
		if ev.Details == nil {
			ev.Details = map[string]string{}
		}
		ev.Details["error"] = err.Error()
	}
	l.Record(ctx, ev)
}

// ConfigReload records a daemon configuration reload.
func (l *Logger) ConfigReload(ctx context.Context, source string, err error, changed bool) {
	l.Mutation(ctx, EventConfigReload, "config", err, map[string]string{
		"source":  source,
		"changed": strconv.FormatBool(changed),
	})
}
