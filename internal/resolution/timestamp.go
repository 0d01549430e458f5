package resolution

import (
	"encoding/json"
	"fmt"

	"github.com/framevault/dedupe-engine/internal/serial"
)

// Timestamp kinds. Which location field applies is fixed per kind: a service
// identifier for the file-service kinds, a domain string for modified-domain,
// a canvas tag for last-viewed, nothing for the rest.
const (
	TimestampArchived = iota
	TimestampModifiedFile
	TimestampModifiedAggregate
	TimestampModifiedDomain
	TimestampImported
	TimestampDeleted
	TimestampPreviouslyImported
	TimestampLastViewed
)

// TimestampData is one tagged timestamp fact about a file, as used by the
// rule engine's search semantics.
type TimestampData struct {
	Kind        int    `json:"kind"`
	ServiceID   string `json:"serviceId,omitempty"`  // imported / deleted / previously-imported
	Domain      string `json:"domain,omitempty"`     // modified-domain
	CanvasType  string `json:"canvasType,omitempty"` // last-viewed
	TimestampMS *int64 `json:"timestampMs,omitempty"`
}

func (t TimestampData) Validate() error {
	switch t.Kind {
	case TimestampImported, TimestampDeleted, TimestampPreviouslyImported:
		if t.ServiceID == "" {
			return fmt.Errorf("timestamp kind %d needs a service identifier", t.Kind)
		}
	case TimestampModifiedDomain:
		if t.Domain == "" {
			return fmt.Errorf("modified-domain timestamp needs a domain")
		}
	case TimestampLastViewed:
		if t.CanvasType == "" {
			return fmt.Errorf("last-viewed timestamp needs a canvas type")
		}
	case TimestampArchived, TimestampModifiedFile, TimestampModifiedAggregate:
		// no location
	default:
		return fmt.Errorf("unknown timestamp kind %d", t.Kind)
	}
	return nil
}

// TimestampIsSensible rejects missing values and anything in the first week
// of the epoch, which is always a parsing conversion error, not a real time.
func TimestampIsSensible(timestampMS *int64) bool {
	if timestampMS == nil {
		return false
	}
	return *timestampMS > 86400*7*1000
}

// ShouldUpdateModifiedTime reports whether the new modified time should
// replace the existing one. Modified times only ever move backwards.
func ShouldUpdateModifiedTime(existingMS, newMS *int64) bool {
	if newMS == nil {
		return false
	}
	if existingMS == nil {
		return true
	}
	return *newMS < *existingMS
}

// MergeModifiedTimes keeps the earlier of the two known modified times.
func MergeModifiedTimes(existingMS, newMS *int64) *int64 {
	if ShouldUpdateModifiedTime(existingMS, newMS) {
		return newMS
	}
	return existingMS
}

func init() {
	serial.Register(serial.TypeTimestampData, 2)

	// v1 stored whole seconds; v2 stores milliseconds
	serial.RegisterMigration(serial.TypeTimestampData, 1, func(payload json.RawMessage) (json.RawMessage, error) {
		var v1 struct {
			Kind       int    `json:"kind"`
			ServiceID  string `json:"serviceId,omitempty"`
			Domain     string `json:"domain,omitempty"`
			CanvasType string `json:"canvasType,omitempty"`
			Timestamp  *int64 `json:"timestamp,omitempty"`
		}
		if err := json.Unmarshal(payload, &v1); err != nil {
			return nil, err
		}

		v2 := TimestampData{
			Kind:       v1.Kind,
			ServiceID:  v1.ServiceID,
			Domain:     v1.Domain,
			CanvasType: v1.CanvasType,
		}
		if v1.Timestamp != nil {
			ms := *v1.Timestamp * 1000
			v2.TimestampMS = &ms
		}

		return json.Marshal(v2)
	})
}

// EncodeTimestampData wraps a TimestampData in its versioned envelope.
func EncodeTimestampData(t TimestampData) ([]byte, error) {
	return serial.Encode(serial.TypeTimestampData, t)
}

// DecodeTimestampData loads a TimestampData envelope of any known version.
func DecodeTimestampData(data []byte) (TimestampData, error) {
	var t TimestampData
	if err := serial.Decode(data, serial.TypeTimestampData, &t); err != nil {
		return TimestampData{}, err
	}
	return t, nil
}
