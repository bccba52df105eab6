package evb

import (
	"testing"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSchema = `
CREATE TABLE ChannelMap (
	BoardType TEXT, BoardSerial INTEGER, Channel INTEGER,
	Component TEXT, EnergyField TEXT, ShortField TEXT, TimeField TEXT, CalibratedField TEXT,
	MinRun INTEGER, MaxRun INTEGER);
CREATE TABLE DerivedFields (
	Name TEXT, Inputs TEXT, Expression TEXT, Position INTEGER, MinRun INTEGER, MaxRun INTEGER);
CREATE TABLE ScalerList (
	FilePattern TEXT, Name TEXT, Position INTEGER, MinRun INTEGER, MaxRun INTEGER);
CREATE TABLE ShiftMap (
	BoardType TEXT, BoardSerial INTEGER, Channel INTEGER, TimeShift REAL, MinRun INTEGER, MaxRun INTEGER);

INSERT INTO ChannelMap VALUES ('V1730', 989, 1, NULL, 'CathodeEnergy', NULL, NULL, NULL, 0, 100);
INSERT INTO ChannelMap VALUES ('V1730', 989, 0, 'Anode', NULL, NULL, NULL, NULL, 0, 100);
INSERT INTO ChannelMap VALUES ('V1730', 989, 0, 'OldAnode', NULL, NULL, NULL, NULL, 101, 200);
INSERT INTO DerivedFields VALUES ('Sum', 'AnodeEnergy, CathodeEnergy', 'AnodeEnergy + CathodeEnergy', 2, 0, 100);
INSERT INTO DerivedFields VALUES ('Ratio', 'AnodeEnergy,CathodeEnergy', 'AnodeEnergy / CathodeEnergy', 1, 0, 100);
INSERT INTO ScalerList VALUES ('DataR_CH15@', 'clock', 1, 0, 100);
INSERT INTO ScalerList VALUES ('DataR_CH14@', 'beam', 2, 50, 100);
INSERT INTO ShiftMap VALUES ('V1730', 989, 1, -2.5, 0, 100);
`

func testDB(t *testing.T) *sqlx.DB {
	t.Helper()
	db, err := sqlx.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	// every connection to :memory: is a new database
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	_, err = db.Exec(testSchema)
	require.NoError(t, err)
	return db
}

func TestLoadChannelSetupFromDB(t *testing.T) {
	db := testDB(t)

	setup, err := LoadChannelSetupFromDB(db, 7)
	require.NoError(t, err)

	assert.Equal(t, []ChannelMapEntry{
		{ChannelIdentity: identity(0), Component: "Anode"},
		{ChannelIdentity: identity(1), Energy: "CathodeEnergy"},
	}, setup.Channels)
	assert.Equal(t, []DerivedFieldSpec{
		{Name: "Ratio", Inputs: []string{"AnodeEnergy", "CathodeEnergy"}, Expression: "AnodeEnergy / CathodeEnergy"},
		{Name: "Sum", Inputs: []string{"AnodeEnergy", "CathodeEnergy"}, Expression: "AnodeEnergy + CathodeEnergy"},
	}, setup.Derived)
	assert.Equal(t, []ScalerEntry{{FilePattern: "DataR_CH15@", Name: "clock"}}, setup.Scalers)
	assert.Equal(t, []ShiftMapEntry{{ChannelIdentity: identity(1), TimeShift: -2.5}}, setup.Shifts)

	cm, err := NewChannelMap(setup.Channels, setup.Derived)
	require.NoError(t, err)
	assert.Len(t, cm.Columns(), 6)
	assert.Equal(t, int64(-2500), NewShiftMap(setup.Shifts).Get(identity(1)))
}

func TestLoadChannelSetupFromDBRunRanges(t *testing.T) {
	db := testDB(t)

	setup, err := LoadChannelSetupFromDB(db, 150)
	require.NoError(t, err)
	assert.Equal(t, []ChannelMapEntry{{ChannelIdentity: identity(0), Component: "OldAnode"}}, setup.Channels)
	assert.Empty(t, setup.Derived)
	assert.Empty(t, setup.Scalers)
	assert.Empty(t, setup.Shifts)

	setup, err = LoadChannelSetupFromDB(db, 60)
	require.NoError(t, err)
	assert.Len(t, setup.Scalers, 2)
}

func TestLoadChannelSetupFromDBMissingTable(t *testing.T) {
	db, err := sqlx.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	defer db.Close()

	_, err = LoadChannelSetupFromDB(db, 1)
	assert.ErrorContains(t, err, "channel map")
}
