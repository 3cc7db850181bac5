package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
)

// Record je jedna lectura (měření) z Arduino senzoru elektroměru.
// Stejná struktura putuje oběma směry: MQTT -> Store i HTTP POST -> MQTT.
type Record struct {
	// DeviceID: Jediné povinné pole. Identifikuje zařízení, které měření poslalo.
	DeviceID int64 `json:"device_id"`

	// Volitelné hodnoty. Používáme *float64, protože "nepřišlo" (nil) není totéž co 0.0.
	// JSON klíče odpovídají firmwaru senzorů, proto zůstávají ve španělštině.
	Frequency   *float64 `json:"frecuencia"`
	Energy      *float64 `json:"energia"`
	Power       *float64 `json:"potencia"`
	PowerFactor *float64 `json:"fp"`
	Current     *float64 `json:"corriente"`
}

// ValidationError popisuje, které pole payloadu neprošlo kontrolou.
// Field "$" znamená, že problém je v payloadu jako celku (není to JSON objekt).
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("neplatné pole %q: %s", e.Field, e.Reason)
}

// ParseRecord dekóduje surové bajty (MQTT payload nebo HTTP body) na Record.
func ParseRecord(data []byte) (Record, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return Record{}, &ValidationError{Field: "$", Reason: fmt.Sprintf("payload není JSON objekt: %v", err)}
	}
	return DecodeRecord(raw)
}

// DecodeRecord ověří mapu pole -> hodnota a sestaví z ní Record.
// Neznámé klíče se ignorují.
func DecodeRecord(raw map[string]json.RawMessage) (Record, error) {
	var rec Record

	idRaw, ok := raw["device_id"]
	if !ok {
		return Record{}, &ValidationError{Field: "device_id", Reason: "chybí povinné pole"}
	}
	id, err := decodeInt(idRaw)
	if err != nil {
		return Record{}, &ValidationError{Field: "device_id", Reason: err.Error()}
	}
	rec.DeviceID = id

	optional := []struct {
		name   string
		target **float64
	}{
		{"frecuencia", &rec.Frequency},
		{"energia", &rec.Energy},
		{"potencia", &rec.Power},
		{"fp", &rec.PowerFactor},
		{"corriente", &rec.Current},
	}
	for _, f := range optional {
		v, ok := raw[f.name]
		if !ok {
			continue
		}
		val, err := decodeOptionalFloat(v)
		if err != nil {
			return Record{}, &ValidationError{Field: f.name, Reason: err.Error()}
		}
		*f.target = val
	}

	return rec, nil
}

var jsonNull = []byte("null")

// decodeNumber přijímá JSON číslo nebo řetězec obsahující číslo ("7", "60.5").
// bool, objekt i pole skončí chybou typu.
func decodeNumber(v json.RawMessage) (json.Number, error) {
	var n json.Number
	if err := json.Unmarshal(v, &n); err != nil {
		return "", fmt.Errorf("očekáváno číslo, přišlo %s", string(v))
	}
	return n, nil
}

func decodeInt(v json.RawMessage) (int64, error) {
	if bytes.Equal(bytes.TrimSpace(v), jsonNull) {
		return 0, fmt.Errorf("nesmí být null")
	}
	n, err := decodeNumber(v)
	if err != nil {
		return 0, err
	}
	if i, err := n.Int64(); err == nil {
		return i, nil
	}
	// 7.0 je pořád celé číslo
	f, err := n.Float64()
	if err != nil || f != math.Trunc(f) || f < math.MinInt64 || f >= math.MaxInt64 {
		return 0, fmt.Errorf("hodnota %s není celé číslo", n)
	}
	return int64(f), nil
}

func decodeOptionalFloat(v json.RawMessage) (*float64, error) {
	if bytes.Equal(bytes.TrimSpace(v), jsonNull) {
		return nil, nil
	}
	n, err := decodeNumber(v)
	if err != nil {
		return nil, err
	}
	f, err := n.Float64()
	if err != nil {
		return nil, fmt.Errorf("hodnota %s není platné číslo", n)
	}
	return &f, nil
}

// Marshal serializuje Record do wire formátu. Chybějící hodnoty se zapíší jako null.
func (r Record) Marshal() ([]byte, error) {
	return json.Marshal(r)
}

// LogValue implementuje slog.LogValuer, do logu jdou jen vyplněné hodnoty.
func (r Record) LogValue() slog.Value {
	attrs := []slog.Attr{slog.Int64("device_id", r.DeviceID)}
	add := func(key string, v *float64) {
		if v != nil {
			attrs = append(attrs, slog.Float64(key, *v))
		}
	}
	add("frecuencia", r.Frequency)
	add("energia", r.Energy)
	add("potencia", r.Power)
	add("fp", r.PowerFactor)
	add("corriente", r.Current)
	return slog.GroupValue(attrs...)
}
