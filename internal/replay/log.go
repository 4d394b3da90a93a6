package replay

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"airbrakes-ng/internal/imu"
	"airbrakes-ng/internal/logger"
)

// Record is one flight log row read back into memory.
type Record struct {
	State     string
	Extension float64
	Packet    imu.Packet
}

// ReadLog parses a recorded flight log (the CSV files the logger writes) into
// records, in file order. The header row must match the current schema.
//
// The schema has no descriptor column, so the packet variant is inferred:
// rows carrying at least one raw channel read back as raw packets, all other
// rows as estimated packets. A raw packet with every optional channel absent
// therefore reads back as a channel-less estimated packet with the same
// timestamp. Such packets carry nothing the pipeline acts on, so replayed
// control decisions are unaffected.
func ReadLog(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("replay: open %s: %w", path, err)
	}
	defer f.Close()
	return ReadLogFrom(f)
}

func ReadLogFrom(r io.Reader) ([]Record, error) {
	cr := csv.NewReader(r)

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("replay: read header: %w", err)
	}
	if len(header) != len(logger.Headers) {
		return nil, fmt.Errorf("replay: header has %d columns, want %d", len(header), len(logger.Headers))
	}
	for i, h := range header {
		if h != logger.Headers[i] {
			return nil, fmt.Errorf("replay: header column %d is %q, want %q", i, h, logger.Headers[i])
		}
	}

	col := make(map[string]int, len(header))
	for i, h := range header {
		col[h] = i
	}

	var recs []Record
	for line := 2; ; line++ {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("replay: line %d: %w", line, err)
		}
		rec, err := parseRow(row, col)
		if err != nil {
			return nil, fmt.Errorf("replay: line %d: %w", line, err)
		}
		recs = append(recs, rec)
	}
	return recs, nil
}

func parseRow(row []string, col map[string]int) (Record, error) {
	ext, err := strconv.ParseFloat(row[col["extension"]], 64)
	if err != nil {
		return Record{}, fmt.Errorf("bad extension: %w", err)
	}
	ts, err := strconv.ParseInt(row[col["timestamp"]], 10, 64)
	if err != nil {
		return Record{}, fmt.Errorf("bad timestamp: %w", err)
	}

	rec := Record{State: row[col["state"]], Extension: ext}

	// Variant inference, see the ReadLog contract: rows carrying any raw
	// channel are raw packets; everything else reads back as estimated.
	isRaw := false
	for _, name := range []string{
		"gpsCorrelTimestampFlags", "gpsCorrelTimestampTow", "gpsCorrelTimestampWeekNum",
		"scaledAccelX", "scaledAccelY", "scaledAccelZ",
		"scaledGyroX", "scaledGyroY", "scaledGyroZ",
	} {
		if row[col[name]] != "" {
			isRaw = true
			break
		}
	}

	if isRaw {
		p := &imu.RawPacket{TimestampNs: ts}
		if p.GPSCorrelFlags, err = cellInt(row, col, "gpsCorrelTimestampFlags"); err != nil {
			return Record{}, err
		}
		if p.GPSCorrelTOW, err = cellFloat(row, col, "gpsCorrelTimestampTow"); err != nil {
			return Record{}, err
		}
		if p.GPSCorrelWeekNum, err = cellInt(row, col, "gpsCorrelTimestampWeekNum"); err != nil {
			return Record{}, err
		}
		if p.ScaledAccelX, err = cellFloat(row, col, "scaledAccelX"); err != nil {
			return Record{}, err
		}
		if p.ScaledAccelY, err = cellFloat(row, col, "scaledAccelY"); err != nil {
			return Record{}, err
		}
		if p.ScaledAccelZ, err = cellFloat(row, col, "scaledAccelZ"); err != nil {
			return Record{}, err
		}
		if p.ScaledGyroX, err = cellFloat(row, col, "scaledGyroX"); err != nil {
			return Record{}, err
		}
		if p.ScaledGyroY, err = cellFloat(row, col, "scaledGyroY"); err != nil {
			return Record{}, err
		}
		if p.ScaledGyroZ, err = cellFloat(row, col, "scaledGyroZ"); err != nil {
			return Record{}, err
		}
		rec.Packet = p
		return rec, nil
	}

	p := &imu.EstimatedPacket{TimestampNs: ts}
	if p.FilterGPSTimeTOW, err = cellFloat(row, col, "estFilterGpsTimeTow"); err != nil {
		return Record{}, err
	}
	if p.FilterGPSTimeWeekNum, err = cellInt(row, col, "estFilterGpsTimeWeekNum"); err != nil {
		return Record{}, err
	}
	if p.OrientQuaternion, err = cellQuat(row, col, "estOrientQuaternion"); err != nil {
		return Record{}, err
	}
	if p.AttitudeUncertQuaternion, err = cellQuat(row, col, "estAttitudeUncertQuaternion"); err != nil {
		return Record{}, err
	}
	if p.FilterState, err = cellInt(row, col, "estFilterState"); err != nil {
		return Record{}, err
	}
	if p.FilterDynamicsMode, err = cellInt(row, col, "estFilterDynamicsMode"); err != nil {
		return Record{}, err
	}
	if p.FilterStatusFlags, err = cellInt(row, col, "estFilterStatusFlags"); err != nil {
		return Record{}, err
	}
	if p.PressureAlt, err = cellFloat(row, col, "estPressureAlt"); err != nil {
		return Record{}, err
	}
	if p.AngularRateX, err = cellFloat(row, col, "estAngularRateX"); err != nil {
		return Record{}, err
	}
	if p.AngularRateY, err = cellFloat(row, col, "estAngularRateY"); err != nil {
		return Record{}, err
	}
	if p.AngularRateZ, err = cellFloat(row, col, "estAngularRateZ"); err != nil {
		return Record{}, err
	}
	if p.CompensatedAccelX, err = cellFloat(row, col, "estCompensatedAccelX"); err != nil {
		return Record{}, err
	}
	if p.CompensatedAccelY, err = cellFloat(row, col, "estCompensatedAccelY"); err != nil {
		return Record{}, err
	}
	if p.CompensatedAccelZ, err = cellFloat(row, col, "estCompensatedAccelZ"); err != nil {
		return Record{}, err
	}
	rec.Packet = p
	return rec, nil
}

func cellFloat(row []string, col map[string]int, name string) (*float64, error) {
	s := row[col[name]]
	if s == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, fmt.Errorf("bad %s: %w", name, err)
	}
	return &v, nil
}

func cellInt(row []string, col map[string]int, name string) (*int, error) {
	s := row[col[name]]
	if s == "" {
		return nil, nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return nil, fmt.Errorf("bad %s: %w", name, err)
	}
	return &v, nil
}

func cellQuat(row []string, col map[string]int, name string) (*[4]float64, error) {
	s := row[col[name]]
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ";")
	if len(parts) != 4 {
		return nil, fmt.Errorf("bad %s: %d components", name, len(parts))
	}
	var q [4]float64
	for i, part := range parts {
		v, err := strconv.ParseFloat(part, 64)
		if err != nil {
			return nil, fmt.Errorf("bad %s: %w", name, err)
		}
		q[i] = v
	}
	return &q, nil
}
