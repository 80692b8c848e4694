package wire

import (
	"errors"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/oshokin/alert-receiver/internal/domain/alert"
)

// Field names shared by every encoding.
const (
	fieldID              = "id"
	fieldText            = "text"
	fieldDisplay         = "display"
	fieldSource          = "source"
	fieldSize            = "size"
	fieldReceivedAt      = "received_at"
	fieldState           = "state"
	fieldReason          = "reason"
	fieldLocalAddr       = "local_addr"
	fieldReceived        = "received"
	fieldTransientErrors = "transient_errors"
	fieldStartedAt       = "started_at"
	fieldStoppedAt       = "stopped_at"
)

// errMissingField is returned when a required field is absent.
var errMissingField = errors.New("missing field")

// AlertToStruct encodes an alert.
func AlertToStruct(a alert.Alert) *structpb.Struct {
	return &structpb.Struct{
		Fields: map[string]*structpb.Value{
			fieldID:         structpb.NewStringValue(a.ID.String()),
			fieldText:       structpb.NewStringValue(a.Text),
			fieldDisplay:    structpb.NewStringValue(a.Display),
			fieldSource:     structpb.NewStringValue(a.Source),
			fieldSize:       structpb.NewNumberValue(float64(a.Size)),
			fieldReceivedAt: structpb.NewStringValue(formatTime(a.ReceivedAt)),
		},
	}
}

// AlertFromStruct decodes an alert. The display string is rebuilt from the
// text so it always carries the alert prefix.
func AlertFromStruct(s *structpb.Struct) (alert.Alert, error) {
	fields := s.GetFields()

	text, ok := fields[fieldText]
	if !ok {
		return alert.Alert{}, fmt.Errorf("%w: %s", errMissingField, fieldText)
	}

	var id ulid.ULID

	if raw := fields[fieldID].GetStringValue(); raw != "" {
		parsed, err := ulid.ParseStrict(raw)
		if err != nil {
			return alert.Alert{}, fmt.Errorf("parse alert id: %w", err)
		}

		id = parsed
	}

	receivedAt, err := parseTime(fields[fieldReceivedAt].GetStringValue())
	if err != nil {
		return alert.Alert{}, fmt.Errorf("parse received_at: %w", err)
	}

	return alert.New(
		id,
		text.GetStringValue(),
		fields[fieldSource].GetStringValue(),
		int(fields[fieldSize].GetNumberValue()),
		receivedAt,
	), nil
}

// StatusToStruct encodes a receiver status.
func StatusToStruct(st alert.Status) *structpb.Struct {
	return &structpb.Struct{
		Fields: map[string]*structpb.Value{
			fieldState:           structpb.NewStringValue(st.State.String()),
			fieldReason:          structpb.NewStringValue(st.Reason),
			fieldLocalAddr:       structpb.NewStringValue(st.LocalAddr),
			fieldReceived:        structpb.NewNumberValue(float64(st.Received)),
			fieldTransientErrors: structpb.NewNumberValue(float64(st.TransientErrors)),
			fieldStartedAt:       structpb.NewStringValue(formatTime(st.StartedAt)),
			fieldStoppedAt:       structpb.NewStringValue(formatTime(st.StoppedAt)),
		},
	}
}

// StatusFromStruct decodes a receiver status.
func StatusFromStruct(s *structpb.Struct) (alert.Status, error) {
	fields := s.GetFields()

	startedAt, err := parseTime(fields[fieldStartedAt].GetStringValue())
	if err != nil {
		return alert.Status{}, fmt.Errorf("parse started_at: %w", err)
	}

	stoppedAt, err := parseTime(fields[fieldStoppedAt].GetStringValue())
	if err != nil {
		return alert.Status{}, fmt.Errorf("parse stopped_at: %w", err)
	}

	return alert.Status{
		State:           parseState(fields[fieldState].GetStringValue()),
		Reason:          fields[fieldReason].GetStringValue(),
		LocalAddr:       fields[fieldLocalAddr].GetStringValue(),
		Received:        uint64(fields[fieldReceived].GetNumberValue()),
		TransientErrors: uint64(fields[fieldTransientErrors].GetNumberValue()),
		StartedAt:       startedAt,
		StoppedAt:       stoppedAt,
	}, nil
}

// MarshalAlertJSON renders an alert as a JSON document.
func MarshalAlertJSON(a alert.Alert) ([]byte, error) {
	return protojson.Marshal(AlertToStruct(a))
}

// MarshalStatusJSON renders a status as an indented JSON document.
func MarshalStatusJSON(st alert.Status) ([]byte, error) {
	return protojson.MarshalOptions{Multiline: true, Indent: "  "}.Marshal(StatusToStruct(st))
}

func parseState(s string) alert.State {
	for _, state := range []alert.State{alert.StateIdle, alert.StateListening, alert.StateStopped} {
		if state.String() == s {
			return state
		}
	}

	return alert.StateIdle
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}

	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}

	return time.Parse(time.RFC3339Nano, s)
}
