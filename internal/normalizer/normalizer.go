// Package normalizer converts raw dataset envelopes into canonical records.
//
// Every upstream feed is one of five fixed dataset kinds; Normalize dispatches
// on the kind and returns exactly one typed Record or a wrapped sentinel error.
package normalizer

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/potooio/sentinel/internal/types"
	"github.com/potooio/sentinel/internal/util"
)

var (
	ErrUnknownDataset   = errors.New("unknown dataset kind")
	ErrInvalidTimestamp = errors.New("invalid timestamp")
	ErrMissingStation   = errors.New("missing station id")
	ErrMalformedPayload = errors.New("malformed payload")
)

// Envelope is one demultiplexed record as delivered by the stream or replay.
type Envelope struct {
	Dataset types.DatasetKind `json:"dataset"`
	Event   Event             `json:"event"`
}

// Event is the dataset-independent header plus the raw per-kind payload.
type Event struct {
	Timestamp string          `json:"timestamp"`
	StationID string          `json:"station_id,omitempty"`
	Status    string          `json:"status,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
}

type posData struct {
	CustomerID  string   `json:"customer_id"`
	SKU         string   `json:"sku"`
	ProductName string   `json:"product_name"`
	Barcode     string   `json:"barcode"`
	Price       *float64 `json:"price"`
	WeightG     *float64 `json:"weight_g"`
}

type rfidData struct {
	EPC      string `json:"epc"`
	SKU      string `json:"sku"`
	Location string `json:"location"`
}

type queueData struct {
	CustomerCount    *float64 `json:"customer_count"`
	AverageDwellTime *float64 `json:"average_dwell_time"`
}

type recognitionData struct {
	PredictedProduct string   `json:"predicted_product"`
	Accuracy         *float64 `json:"accuracy"`
}

// Normalize converts an envelope into a Record.
func Normalize(env Envelope) (types.Record, error) {
	ts, err := util.ParseTimestamp(env.Event.Timestamp)
	if err != nil {
		return types.Record{}, fmt.Errorf("%w %q: %v", ErrInvalidTimestamp, env.Event.Timestamp, err)
	}

	rec := types.Record{
		StationID: strings.TrimSpace(env.Event.StationID),
		Timestamp: ts,
		Status:    strings.TrimSpace(env.Event.Status),
	}

	switch env.Dataset {
	case types.DatasetPOS:
		var d posData
		if err := decode(env, &d); err != nil {
			return types.Record{}, err
		}
		rec.Payload = types.PosTransaction{
			CustomerID:  util.CleanIdentifier(d.CustomerID),
			SKU:         util.CleanIdentifier(d.SKU),
			Barcode:     util.CleanIdentifier(d.Barcode),
			ProductName: d.ProductName,
			Price:       d.Price,
			WeightG:     d.WeightG,
		}
	case types.DatasetRFID:
		var d rfidData
		if err := decode(env, &d); err != nil {
			return types.Record{}, err
		}
		rec.Payload = types.RfidReading{
			EPC:      util.CleanIdentifier(d.EPC),
			SKU:      util.CleanIdentifier(d.SKU),
			Location: strings.TrimSpace(d.Location),
		}
	case types.DatasetQueue:
		var d queueData
		if err := decode(env, &d); err != nil {
			return types.Record{}, err
		}
		sample := types.QueueSample{}
		if d.CustomerCount != nil {
			sample.CustomerCount = int(math.Round(*d.CustomerCount))
		}
		if d.AverageDwellTime != nil {
			sample.AverageDwellTime = *d.AverageDwellTime
		}
		rec.Payload = sample
	case types.DatasetRecognition:
		var d recognitionData
		if err := decode(env, &d); err != nil {
			return types.Record{}, err
		}
		pr := types.ProductRecognition{PredictedSKU: util.CleanIdentifier(d.PredictedProduct)}
		if d.Accuracy != nil {
			pr.Accuracy = *d.Accuracy
		}
		rec.Payload = pr
	case types.DatasetInventory:
		quantities, err := decodeInventory(env)
		if err != nil {
			return types.Record{}, err
		}
		rec.StationID = ""
		rec.Payload = types.InventorySnapshot{Quantities: quantities}
		return rec, nil
	default:
		return types.Record{}, fmt.Errorf("%w: %q", ErrUnknownDataset, env.Dataset)
	}

	if rec.StationID == "" {
		return types.Record{}, fmt.Errorf("%w: dataset %s", ErrMissingStation, env.Dataset)
	}
	return rec, nil
}

// NormalizeLine decodes one JSON envelope line and normalizes it.
func NormalizeLine(line []byte) (types.Record, Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(line, &env); err != nil {
		return types.Record{}, env, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	rec, err := Normalize(env)
	return rec, env, err
}

func decode(env Envelope, into interface{}) error {
	if len(env.Event.Data) == 0 || string(env.Event.Data) == "null" {
		return fmt.Errorf("%w: %s has no data", ErrMalformedPayload, env.Dataset)
	}
	if err := json.Unmarshal(env.Event.Data, into); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrMalformedPayload, env.Dataset, err)
	}
	return nil
}

// decodeInventory accepts a flat sku->quantity object. Null and non-numeric
// quantities are skipped.
func decodeInventory(env Envelope) (map[string]int, error) {
	var raw map[string]interface{}
	if err := decode(env, &raw); err != nil {
		return nil, err
	}
	out := make(map[string]int, len(raw))
	for sku, v := range raw {
		n, ok := v.(float64)
		if !ok {
			continue
		}
		out[sku] = int(math.Round(n))
	}
	return out, nil
}
