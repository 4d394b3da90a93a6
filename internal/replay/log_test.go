package replay

import (
	"strings"
	"testing"
	"time"

	"airbrakes-ng/internal/imu"
	"airbrakes-ng/internal/logger"
)

// A log written by the logger must read back with every channel intact.
func TestRoundTripThroughLogger(t *testing.T) {
	l, err := logger.New(t.TempDir())
	if err != nil {
		t.Fatalf("logger.New: %v", err)
	}
	l.Start()

	raw := &imu.RawPacket{
		TimestampNs:  100,
		ScaledAccelX: imu.Float64(0.25),
		ScaledGyroZ:  imu.Float64(-1.5),
	}
	est := &imu.EstimatedPacket{
		TimestampNs:       200,
		PressureAlt:       imu.Float64(1405.5),
		OrientQuaternion:  &[4]float64{1, 0, 0, 0.5},
		FilterState:       imu.Int(4),
		CompensatedAccelZ: imu.Float64(19.6),
	}
	l.Log("MotorBurn", 0, []imu.Packet{raw})
	l.Log("Coast", 0.75, []imu.Packet{est})
	if err := l.Stop(); err != nil {
		t.Fatalf("logger.Stop: %v", err)
	}

	recs, err := ReadLog(l.Path())
	if err != nil {
		t.Fatalf("ReadLog: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("got %d records want 2", len(recs))
	}

	if recs[0].State != "MotorBurn" || recs[0].Extension != 0 {
		t.Fatalf("record 0: %+v", recs[0])
	}
	gotRaw, ok := recs[0].Packet.(*imu.RawPacket)
	if !ok {
		t.Fatalf("record 0: got %T want *imu.RawPacket", recs[0].Packet)
	}
	if gotRaw.TimestampNs != 100 || *gotRaw.ScaledAccelX != 0.25 || *gotRaw.ScaledGyroZ != -1.5 {
		t.Fatalf("raw packet fields: %+v", gotRaw)
	}
	if gotRaw.ScaledAccelY != nil {
		t.Fatal("absent channel must read back nil")
	}

	if recs[1].State != "Coast" || recs[1].Extension != 0.75 {
		t.Fatalf("record 1: %+v", recs[1])
	}
	gotEst, ok := recs[1].Packet.(*imu.EstimatedPacket)
	if !ok {
		t.Fatalf("record 1: got %T want *imu.EstimatedPacket", recs[1].Packet)
	}
	if *gotEst.PressureAlt != 1405.5 || *gotEst.FilterState != 4 || *gotEst.CompensatedAccelZ != 19.6 {
		t.Fatalf("estimated packet fields: %+v", gotEst)
	}
	if gotEst.OrientQuaternion[3] != 0.5 {
		t.Fatalf("quaternion: %+v", gotEst.OrientQuaternion)
	}
}

// A raw packet with no optional channels leaves nothing in the raw columns,
// so variant inference reads it back as a channel-less estimated packet.
// Timestamp, state, and extension still round-trip.
func TestChannellessRawReadsBackAsEstimated(t *testing.T) {
	l, err := logger.New(t.TempDir())
	if err != nil {
		t.Fatalf("logger.New: %v", err)
	}
	l.Start()
	l.Log("StandBy", 0, []imu.Packet{&imu.RawPacket{TimestampNs: 42}})
	if err := l.Stop(); err != nil {
		t.Fatalf("logger.Stop: %v", err)
	}

	recs, err := ReadLog(l.Path())
	if err != nil {
		t.Fatalf("ReadLog: %v", err)
	}
	if len(recs) != 1 {
		t.Fatalf("got %d records want 1", len(recs))
	}
	est, ok := recs[0].Packet.(*imu.EstimatedPacket)
	if !ok {
		t.Fatalf("got %T want *imu.EstimatedPacket per the ReadLog contract", recs[0].Packet)
	}
	if est.TimestampNs != 42 || recs[0].State != "StandBy" {
		t.Fatalf("record: %+v", recs[0])
	}
	if est.PressureAlt != nil || est.CompensatedAccelZ != nil {
		t.Fatal("channel-less row must read back with nil channels")
	}
}

func TestReadLogRejectsForeignHeader(t *testing.T) {
	if _, err := ReadLogFrom(strings.NewReader("a,b,c\n1,2,3\n")); err == nil {
		t.Fatal("want header mismatch error")
	}
}

func TestReadLogRejectsBadCell(t *testing.T) {
	var sb strings.Builder
	sb.WriteString(strings.Join(logger.Headers, ","))
	sb.WriteString("\n")
	row := make([]string, len(logger.Headers))
	row[0] = "StandBy"
	row[1] = "not-a-number"
	row[2] = "5"
	sb.WriteString(strings.Join(row, ","))
	sb.WriteString("\n")

	if _, err := ReadLogFrom(strings.NewReader(sb.String())); err == nil {
		t.Fatal("want parse error")
	}
}

func TestSourcePacesByRecordedTimestamps(t *testing.T) {
	mkRec := func(tsNs int64) Record {
		return Record{State: "StandBy", Packet: &imu.EstimatedPacket{TimestampNs: tsNs}}
	}
	// One packet at the origin, one a full hour of recorded time later.
	src, err := NewSource([]Record{mkRec(0), mkRec(3_600_000_000_000)}, SourceConfig{Speed: 1})
	if err != nil {
		t.Fatalf("NewSource: %v", err)
	}
	defer src.Close()

	batch, err := src.Receive(0)
	if err != nil {
		t.Fatalf("Receive: %v", err)
	}
	if len(batch) != 1 || batch[0].Timestamp() != 0 {
		t.Fatalf("first batch: %v want only the origin packet", batch)
	}
	if src.Remaining() != 1 {
		t.Fatalf("remaining=%d want 1", src.Remaining())
	}

	// The second packet is far in the future; a quiet poll returns nothing.
	batch, err = src.Receive(0)
	if err != nil {
		t.Fatalf("Receive: %v", err)
	}
	if len(batch) != 0 {
		t.Fatalf("second batch: %v want empty", batch)
	}
}

func TestSourceDeliversEverythingAtHighSpeed(t *testing.T) {
	recs := []Record{
		{Packet: &imu.EstimatedPacket{TimestampNs: 0}},
		{Packet: &imu.EstimatedPacket{TimestampNs: 1_000_000}},
		{Packet: &imu.EstimatedPacket{TimestampNs: 2_000_000}},
	}
	src, err := NewSource(recs, SourceConfig{Speed: 1e9})
	if err != nil {
		t.Fatalf("NewSource: %v", err)
	}
	defer src.Close()

	got := 0
	for i := 0; i < 10 && got < len(recs); i++ {
		batch, err := src.Receive(time.Millisecond)
		if err != nil {
			t.Fatalf("Receive: %v", err)
		}
		got += len(batch)
	}
	if got != len(recs) {
		t.Fatalf("delivered %d packets want %d", got, len(recs))
	}

	if _, err := NewSource(nil, SourceConfig{}); err == nil {
		t.Fatal("empty log: want error")
	}
}
