package main

import (
	"bytes"
	"errors"
	"image"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kpos-print/internal/printer"
	"kpos-print/internal/receipt"
)

func TestSampleSaleIsPrintable(t *testing.T) {
	tx := sampleSale(time.Date(2024, 3, 5, 14, 7, 0, 0, time.UTC))
	require.NoError(t, tx.Validate())
	_, err := uuid.Parse(tx.ID)
	assert.NoError(t, err)

	for _, width := range []int{32, 48} {
		for _, line := range receipt.Lines(receipt.Format(tx), width) {
			assert.LessOrEqual(t, receipt.Width(line), width, line)
		}
	}
}

func TestReadTransaction(t *testing.T) {
	body := `{"id":"abc123","storeName":"K.POS","items":[{"nama":"Kopi","qty":2,"harga_jual":5000,"jumlah_total":10000}],"jumlah_total":10000}`

	tx, err := readTransaction(strings.NewReader(body), "-")
	require.NoError(t, err)
	assert.Equal(t, "K.POS", tx.StoreName)
	require.Len(t, tx.Items, 1)
	assert.Equal(t, "Kopi", tx.Items[0].Name)

	path := filepath.Join(t.TempDir(), "tx.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	tx, err = readTransaction(nil, path)
	require.NoError(t, err)
	assert.Equal(t, "abc123", tx.ID)

	_, err = readTransaction(strings.NewReader("{"), "-")
	assert.Error(t, err)
}

func TestDescribe(t *testing.T) {
	err := printer.NewError(printer.CodeConnectionFailed, errors.New("page timeout"))
	assert.Equal(t, printer.CodeConnectionFailed.Message()+" (CONNECTION_FAILED)", describe(err))
	assert.Equal(t, "boom", describe(errors.New("boom")))
}

func TestListDevicesMarksSelection(t *testing.T) {
	var out bytes.Buffer
	devices := []printer.BluetoothDevice{
		{Name: "RPP-02N", Address: "AA:BB:CC:DD:EE:01"},
		{Name: "MPT-II", Address: "AA:BB:CC:DD:EE:02"},
	}
	listDevices(&out, "Paired", devices, &devices[1])

	text := out.String()
	assert.Contains(t, text, "Paired (2)")
	assert.Contains(t, text, "RPP-02N")
	for _, line := range strings.Split(text, "\n") {
		if strings.Contains(line, "MPT-II") {
			assert.Contains(t, line, "*")
		}
		if strings.Contains(line, "RPP-02N") {
			assert.NotContains(t, line, "*")
		}
	}
}

func TestWritePNG(t *testing.T) {
	path := filepath.Join(t.TempDir(), "receipt.png")
	require.NoError(t, writePNG(path, image.NewGray(image.Rect(0, 0, 8, 8))))
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))
}
