package serial

import (
	"encoding/json"
	"testing"
)

const testType = 900 // out of the real tag range

type widgetV2 struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func TestEncodeDecode_Roundtrip(t *testing.T) {
	Register(testType, 2)

	in := widgetV2{Name: "thing", Count: 7}

	data, err := Encode(testType, in)
	if err != nil {
		t.Fatalf("Encode() error: %v", err)
	}

	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		t.Fatalf("Envelope did not parse: %v", err)
	}
	if env.Type != testType || env.Version != 2 {
		t.Errorf("Envelope = type %d version %d, want %d/2", env.Type, env.Version, testType)
	}

	var out widgetV2
	if err := Decode(data, testType, &out); err != nil {
		t.Fatalf("Decode() error: %v", err)
	}
	if out != in {
		t.Errorf("Roundtrip mismatch: %+v vs %+v", out, in)
	}
}

func TestDecode_MigratesForward(t *testing.T) {
	Register(testType, 2)
	RegisterMigration(testType, 1, func(payload json.RawMessage) (json.RawMessage, error) {
		// v1 stored count under "n"
		var v1 struct {
			Name string `json:"name"`
			N    int    `json:"n"`
		}
		if err := json.Unmarshal(payload, &v1); err != nil {
			return nil, err
		}
		return json.Marshal(widgetV2{Name: v1.Name, Count: v1.N})
	})

	old, _ := json.Marshal(Envelope{
		Type:    testType,
		Version: 1,
		Payload: json.RawMessage(`{"name":"legacy","n":3}`),
	})

	var out widgetV2
	if err := Decode(old, testType, &out); err != nil {
		t.Fatalf("Decode() error: %v", err)
	}
	if out.Name != "legacy" || out.Count != 3 {
		t.Errorf("Migration produced %+v", out)
	}
}

func TestDecode_Errors(t *testing.T) {
	Register(testType, 2)

	data, err := Encode(testType, widgetV2{})
	if err != nil {
		t.Fatalf("Encode() error: %v", err)
	}

	t.Run("Wrong Type", func(t *testing.T) {
		var out widgetV2
		if err := Decode(data, testType+1, &out); err == nil {
			t.Error("Expected a type mismatch error")
		}
	})

	t.Run("Future Version", func(t *testing.T) {
		future, _ := json.Marshal(Envelope{Type: testType, Version: 99, Payload: json.RawMessage(`{}`)})
		var out widgetV2
		if err := Decode(future, testType, &out); err == nil {
			t.Error("Expected an unsupported-version error")
		}
	})

	t.Run("Unregistered Type", func(t *testing.T) {
		if _, err := Encode(testType+500, widgetV2{}); err == nil {
			t.Error("Expected an unregistered-type error")
		}
	})

	t.Run("Missing Migration", func(t *testing.T) {
		// no migration registered from version 0
		ancient, _ := json.Marshal(Envelope{Type: testType, Version: 0, Payload: json.RawMessage(`{}`)})
		var out widgetV2
		if err := Decode(ancient, testType, &out); err == nil {
			t.Error("Expected a missing-migration error")
		}
	})
}
