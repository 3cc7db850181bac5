package main

import (
	"errors"
	"strings"
	"testing"
)

func floatPtr(f float64) *float64 { return &f }

func sameFloat(a, b *float64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func sameRecord(a, b Record) bool {
	return a.DeviceID == b.DeviceID &&
		sameFloat(a.Frequency, b.Frequency) &&
		sameFloat(a.Energy, b.Energy) &&
		sameFloat(a.Power, b.Power) &&
		sameFloat(a.PowerFactor, b.PowerFactor) &&
		sameFloat(a.Current, b.Current)
}

func TestParseRecordValid(t *testing.T) {
	cases := []struct {
		name    string
		payload string
		want    Record
	}{
		{
			name:    "only device id",
			payload: `{"device_id": 3}`,
			want:    Record{DeviceID: 3},
		},
		{
			name:    "all fields",
			payload: `{"device_id": 7, "frecuencia": 60.0, "energia": 12.5, "potencia": 230, "fp": 0.98, "corriente": 1.5}`,
			want: Record{
				DeviceID:    7,
				Frequency:   floatPtr(60),
				Energy:      floatPtr(12.5),
				Power:       floatPtr(230),
				PowerFactor: floatPtr(0.98),
				Current:     floatPtr(1.5),
			},
		},
		{
			name:    "explicit nulls",
			payload: `{"device_id": 1, "frecuencia": null, "corriente": null}`,
			want:    Record{DeviceID: 1},
		},
		{
			name:    "zero is not null",
			payload: `{"device_id": 1, "potencia": 0}`,
			want:    Record{DeviceID: 1, Power: floatPtr(0)},
		},
		{
			name:    "integral float id",
			payload: `{"device_id": 7.0}`,
			want:    Record{DeviceID: 7},
		},
		{
			name:    "numeric strings are coerced",
			payload: `{"device_id": "42", "fp": "0.5"}`,
			want:    Record{DeviceID: 42, PowerFactor: floatPtr(0.5)},
		},
		{
			name:    "unknown fields are ignored",
			payload: `{"device_id": 9, "rssi": -70, "firmware": "1.2.0"}`,
			want:    Record{DeviceID: 9},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ParseRecord([]byte(tc.payload))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !sameRecord(got, tc.want) {
				t.Fatalf("got %+v, want %+v", got, tc.want)
			}
		})
	}
}

func TestParseRecordInvalid(t *testing.T) {
	cases := []struct {
		name    string
		payload string
		field   string
	}{
		{"broken json", `{"device_id": `, "$"},
		{"not an object", `[1, 2, 3]`, "$"},
		{"empty payload", ``, "$"},
		{"missing device id", `{"frecuencia": 60.0}`, "device_id"},
		{"json null document", `null`, "device_id"},
		{"null device id", `{"device_id": null}`, "device_id"},
		{"fractional device id", `{"device_id": 1.5}`, "device_id"},
		{"bool device id", `{"device_id": true}`, "device_id"},
		{"text device id", `{"device_id": "abc"}`, "device_id"},
		{"object field", `{"device_id": 1, "energia": {"kwh": 3}}`, "energia"},
		{"bool field", `{"device_id": 1, "corriente": false}`, "corriente"},
		{"text field", `{"device_id": 1, "frecuencia": "sesenta"}`, "frecuencia"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseRecord([]byte(tc.payload))
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if verr.Field != tc.field {
				t.Fatalf("expected field %q, got %q (%v)", tc.field, verr.Field, verr)
			}
			if !strings.Contains(verr.Error(), tc.field) {
				t.Fatalf("error message should name the field: %q", verr.Error())
			}
		})
	}
}

func TestRecordRoundTrip(t *testing.T) {
	payloads := []string{
		`{"device_id": 3, "corriente": 1.5}`,
		`{"device_id": -12, "frecuencia": 59.97, "energia": 1e6}`,
		`{"device_id": 9007199254740993, "fp": 0.123456789}`,
		`{"device_id": 0, "potencia": 0, "fp": null}`,
	}

	for _, p := range payloads {
		first, err := ParseRecord([]byte(p))
		if err != nil {
			t.Fatalf("decode %s: %v", p, err)
		}
		encoded, err := first.Marshal()
		if err != nil {
			t.Fatalf("encode %s: %v", p, err)
		}
		second, err := ParseRecord(encoded)
		if err != nil {
			t.Fatalf("re-decode %s: %v", encoded, err)
		}
		if !sameRecord(first, second) {
			t.Fatalf("round trip changed record: %+v -> %+v", first, second)
		}
	}
}

func TestRecordMarshalWritesNulls(t *testing.T) {
	out, err := Record{DeviceID: 5, Current: floatPtr(2)}.Marshal()
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	want := `{"device_id":5,"frecuencia":null,"energia":null,"potencia":null,"fp":null,"corriente":2}`
	if string(out) != want {
		t.Fatalf("got %s, want %s", out, want)
	}
}
