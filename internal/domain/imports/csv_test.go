package imports

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bookledger/internal/core/types"
)

const sampleHeader = "isbn,warehouseCode,movementType,quantity,movementDate,referenceNumber"
const sampleHeaderWithCosts = sampleHeader + ",rrp,unitCost"

func TestParseFilePlain(t *testing.T) {
	file := strings.Join([]string{
		sampleHeaderWithCosts,
		"9781234567897,LDN,RECEIPT,500,2026-01-15,PO-1001,19.99,8.00",
		"9781234567897,LDN,SALE,-120,2026-01-20,SO-2001,,",
	}, "\n")

	rows, rowErrs, err := ParseFile(strings.NewReader(file))
	require.NoError(t, err)
	assert.Empty(t, rowErrs)
	require.Len(t, rows, 2)

	assert.Equal(t, "9781234567897", rows[0].ISBN)
	assert.Equal(t, "LDN", rows[0].WarehouseCode)
	assert.Equal(t, "RECEIPT", rows[0].MovementType)
	assert.Equal(t, int64(500), rows[0].Quantity)
	assert.Equal(t, time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC), rows[0].MovementDate)
	assert.Equal(t, "PO-1001", rows[0].Reference)
	require.NotNil(t, rows[0].UnitCost)
	assert.True(t, rows[0].UnitCost.Equal(types.MustMoney("8.00")))

	assert.Equal(t, int64(-120), rows[1].Quantity)
	assert.Nil(t, rows[1].UnitCost, "blank cost columns stay unset")
}

func TestParseFileWithoutCostColumns(t *testing.T) {
	file := sampleHeader + "\n9781234567897,LDN,SALE,-5,2026-02-01,SO-1\n"

	rows, rowErrs, err := ParseFile(strings.NewReader(file))
	require.NoError(t, err)
	assert.Empty(t, rowErrs)
	require.Len(t, rows, 1)
	assert.Nil(t, rows[0].UnitCost)
	assert.Nil(t, rows[0].RRP)
}

func TestParseFileGzip(t *testing.T) {
	file := sampleHeader + "\n9781234567897,LDN,RECEIPT,10,2026-01-01,PO-1\n"

	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	_, err := zw.Write([]byte(file))
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	rows, rowErrs, err := ParseFile(&buf)
	require.NoError(t, err)
	assert.Empty(t, rowErrs)
	require.Len(t, rows, 1)
	assert.Equal(t, int64(10), rows[0].Quantity)
}

func TestParseFileBadHeader(t *testing.T) {
	cases := []string{
		"isbn,warehouse,movementType,quantity,movementDate,referenceNumber",
		"isbn,warehouseCode,movementType,quantity",
		"",
	}
	for _, header := range cases {
		_, _, err := ParseFile(strings.NewReader(header + "\n"))
		assert.Error(t, err, "header %q", header)
	}
}

func TestParseFileCollectsRowErrors(t *testing.T) {
	file := strings.Join([]string{
		sampleHeader,
		"9781234567897,LDN,RECEIPT,ten,2026-01-01,PO-1",
		"9781234567897,LDN,RECEIPT,10,01/01/2026,PO-2",
		",LDN,RECEIPT,10,2026-01-01,PO-3",
		"9781234567897,LDN,RECEIPT,10,2026-01-01,PO-4",
	}, "\n")

	rows, rowErrs, err := ParseFile(strings.NewReader(file))
	require.NoError(t, err)
	assert.Len(t, rows, 1, "only the clean row parses")
	assert.Len(t, rowErrs, 3)

	// row numbers are file line numbers, header is line 1
	assert.Equal(t, 2, rowErrs[0].Row)
	assert.Equal(t, "quantity", rowErrs[0].Field)
	assert.Equal(t, 3, rowErrs[1].Row)
	assert.Equal(t, "movementDate", rowErrs[1].Field)
	assert.Equal(t, 4, rowErrs[2].Row)
	assert.Equal(t, "isbn", rowErrs[2].Field)
}

func TestParseFileMalformedCSV(t *testing.T) {
	file := sampleHeader + "\n\"unterminated,LDN,RECEIPT,10,2026-01-01,PO-1\n"

	_, _, err := ParseFile(strings.NewReader(file))
	require.Error(t, err)
}

func TestParseFileLowercasesNothingButType(t *testing.T) {
	file := sampleHeader + "\n9781234567897,ldn,receipt,10,2026-01-01,po-1\n"

	rows, _, err := ParseFile(strings.NewReader(file))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "RECEIPT", rows[0].MovementType, "movement type is normalized")
	assert.Equal(t, "ldn", rows[0].WarehouseCode, "codes keep their case")
}
