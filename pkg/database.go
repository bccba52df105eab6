package evb

import (
	"fmt"
	"strings"

	_ "github.com/go-sql-driver/mysql"
	sqlx "github.com/jmoiron/sqlx" //make alias name the package to sqlx
)

func ConnectToDatabase(user string, pass string, host string, dbname string) (*sqlx.DB, error) {
	port := "3306"
	dbURI := fmt.Sprintf("%s:%s@(%s:%s)/%s?parseTime=true", user, pass, host, port, dbname)
	db, err := sqlx.Connect("mysql", dbURI)
	return db, err
}

type derivedFieldRow struct {
	Name       string `db:"Name"`
	Inputs     string `db:"Inputs"`
	Expression string `db:"Expression"`
}

// LoadChannelSetupFromDB reads the channel setup valid for a run number.
func LoadChannelSetupFromDB(db *sqlx.DB, runNumber int) (ChannelSetup, error) {
	var setup ChannelSetup
	var err error

	setup.Channels, err = getChannelMapFromDB(db, runNumber)
	if err != nil {
		return setup, fmt.Errorf("error getting channel map from database: %w", err)
	}
	setup.Derived, err = getDerivedFieldsFromDB(db, runNumber)
	if err != nil {
		return setup, fmt.Errorf("error getting derived fields from database: %w", err)
	}
	setup.Scalers, err = queryRows[ScalerEntry](db, "scaler list",
		"SELECT FilePattern, Name FROM ScalerList WHERE MinRun <= ? and MaxRun >= ? ORDER BY Position", runNumber)
	if err != nil {
		return setup, fmt.Errorf("error getting scaler list from database: %w", err)
	}
	setup.Shifts, err = queryRows[ShiftMapEntry](db, "shift map",
		"SELECT BoardType, BoardSerial, Channel, TimeShift FROM ShiftMap WHERE MinRun <= ? and MaxRun >= ?", runNumber)
	if err != nil {
		return setup, fmt.Errorf("error getting shift map from database: %w", err)
	}
	return setup, nil
}

func getChannelMapFromDB(db *sqlx.DB, runNumber int) ([]ChannelMapEntry, error) {
	query := "SELECT BoardType, BoardSerial, Channel, COALESCE(Component, '') AS Component, " +
		"COALESCE(EnergyField, '') AS EnergyField, COALESCE(ShortField, '') AS ShortField, " +
		"COALESCE(TimeField, '') AS TimeField, COALESCE(CalibratedField, '') AS CalibratedField " +
		"FROM ChannelMap WHERE MinRun <= ? and MaxRun >= ? ORDER BY BoardType, BoardSerial, Channel"
	return queryRows[ChannelMapEntry](db, "channel map", query, runNumber)
}

func getDerivedFieldsFromDB(db *sqlx.DB, runNumber int) ([]DerivedFieldSpec, error) {
	query := "SELECT Name, Inputs, Expression FROM DerivedFields WHERE MinRun <= ? and MaxRun >= ? ORDER BY Position"
	rows, err := queryRows[derivedFieldRow](db, "derived fields", query, runNumber)
	if err != nil {
		return nil, err
	}
	derived := make([]DerivedFieldSpec, 0, len(rows))
	for _, row := range rows {
		var inputs []string
		for _, input := range strings.Split(row.Inputs, ",") {
			if input = strings.TrimSpace(input); input != "" {
				inputs = append(inputs, input)
			}
		}
		derived = append(derived, DerivedFieldSpec{Name: row.Name, Inputs: inputs, Expression: row.Expression})
	}
	return derived, nil
}

func queryRows[T any](db *sqlx.DB, table string, query string, runNumber int) ([]T, error) {
	verbosity := GetConfiguration().Verbosity
	if verbosity > 0 {
		logger.Info(fmt.Sprintf("Reading %s from DB", table), "database")
	}
	if verbosity > 2 {
		logger.Info(fmt.Sprintf("Query: %s", query), "database")
	}

	rows, err := db.Queryx(query, runNumber, runNumber)
	if err != nil {
		return nil, fmt.Errorf("error querying database: %w", err)
	}
	defer rows.Close()

	var results []T
	for rows.Next() {
		var result T
		if err := rows.StructScan(&result); err != nil {
			return nil, fmt.Errorf("error scanning DB row: %w", err)
		}
		results = append(results, result)
	}
	return results, rows.Err()
}
