package normalizer

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/potooio/sentinel/internal/types"
)

func envelope(dataset types.DatasetKind, station, data string) Envelope {
	return Envelope{
		Dataset: dataset,
		Event: Event{
			Timestamp: "2025-08-13T16:00:01",
			StationID: station,
			Status:    "Active",
			Data:      json.RawMessage(data),
		},
	}
}

func TestNormalize_POS(t *testing.T) {
	rec, err := Normalize(envelope(types.DatasetPOS, "SCC1",
		`{"customer_id":"C004","sku":"PRD_F_01","product_name":"Marie","barcode":"479","price":540.0,"weight_g":400.0}`))
	require.NoError(t, err)

	assert.Equal(t, types.RecordPOS, rec.Type())
	assert.Equal(t, "SCC1", rec.StationID)
	assert.Equal(t, "Active", rec.Status)
	assert.Equal(t, time.Date(2025, 8, 13, 16, 0, 1, 0, time.UTC), rec.Timestamp)

	pos, ok := rec.POS()
	require.True(t, ok)
	assert.Equal(t, "C004", pos.CustomerID)
	assert.Equal(t, "PRD_F_01", pos.SKU)
	require.NotNil(t, pos.Price)
	assert.Equal(t, 540.0, *pos.Price)
	require.NotNil(t, pos.WeightG)
	assert.Equal(t, 400.0, *pos.WeightG)
}

func TestNormalize_POSOptionalFields(t *testing.T) {
	rec, err := Normalize(envelope(types.DatasetPOS, "SCC1", `{"sku":"PRD_F_01","price":null}`))
	require.NoError(t, err)

	pos, _ := rec.POS()
	assert.Nil(t, pos.Price)
	assert.Nil(t, pos.WeightG)
	assert.Empty(t, pos.CustomerID)
}

func TestNormalize_RFIDNullSKU(t *testing.T) {
	rec, err := Normalize(envelope(types.DatasetRFID, "SCC1", `{"epc":"E280-0001","sku":"null","location":"IN_SCAN_AREA"}`))
	require.NoError(t, err)

	rfid, ok := rec.RFID()
	require.True(t, ok)
	assert.Empty(t, rfid.SKU)
	assert.True(t, rfid.InScanArea())

	rec, err = Normalize(envelope(types.DatasetRFID, "SCC1", `{"epc":"E280-0001","sku":null,"location":"SHELF"}`))
	require.NoError(t, err)
	rfid, _ = rec.RFID()
	assert.Empty(t, rfid.SKU)
	assert.False(t, rfid.InScanArea())
}

func TestNormalize_Queue(t *testing.T) {
	rec, err := Normalize(envelope(types.DatasetQueue, "SCC2", `{"customer_count":4,"average_dwell_time":130.5}`))
	require.NoError(t, err)

	q, ok := rec.Queue()
	require.True(t, ok)
	assert.Equal(t, 4, q.CustomerCount)
	assert.Equal(t, 130.5, q.AverageDwellTime)
}

func TestNormalize_Recognition(t *testing.T) {
	rec, err := Normalize(envelope(types.DatasetRecognition, "SCC1", `{"predicted_product":"PRD_F_02","accuracy":0.91}`))
	require.NoError(t, err)

	pr, ok := rec.Recognition()
	require.True(t, ok)
	assert.Equal(t, "PRD_F_02", pr.PredictedSKU)
	assert.Equal(t, 0.91, pr.Accuracy)
}

func TestNormalize_Inventory(t *testing.T) {
	rec, err := Normalize(envelope(types.DatasetInventory, "ignored", `{"PRD_F_01":120,"PRD_F_02":null,"PRD_F_03":"x"}`))
	require.NoError(t, err)

	assert.Empty(t, rec.StationID, "inventory snapshots are global")
	inv, ok := rec.Inventory()
	require.True(t, ok)
	assert.Equal(t, map[string]int{"PRD_F_01": 120}, inv.Quantities)
}

func TestNormalize_Errors(t *testing.T) {
	tests := []struct {
		name string
		env  Envelope
		want error
	}{
		{
			name: "unknown dataset",
			env:  envelope("Weather", "SCC1", `{}`),
			want: ErrUnknownDataset,
		},
		{
			name: "bad timestamp",
			env: Envelope{Dataset: types.DatasetQueue, Event: Event{
				Timestamp: "not-a-time", StationID: "SCC1", Data: json.RawMessage(`{}`),
			}},
			want: ErrInvalidTimestamp,
		},
		{
			name: "missing station",
			env:  envelope(types.DatasetQueue, "  ", `{"customer_count":1}`),
			want: ErrMissingStation,
		},
		{
			name: "missing data",
			env:  envelope(types.DatasetPOS, "SCC1", ``),
			want: ErrMalformedPayload,
		},
		{
			name: "wrong payload shape",
			env:  envelope(types.DatasetQueue, "SCC1", `{"customer_count":"many"}`),
			want: ErrMalformedPayload,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Normalize(tt.env)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestNormalizeLine(t *testing.T) {
	line := []byte(`{"dataset":"Queue_monitor","event":{"timestamp":"2025-08-13T16:00:05Z","station_id":"SCC1","status":"Active","data":{"customer_count":2,"average_dwell_time":40}}}`)

	rec, env, err := NormalizeLine(line)
	require.NoError(t, err)
	assert.Equal(t, types.DatasetQueue, env.Dataset)
	assert.Equal(t, types.RecordQueue, rec.Type())

	_, _, err = NormalizeLine([]byte(`{not json`))
	assert.ErrorIs(t, err, ErrMalformedPayload)
}
