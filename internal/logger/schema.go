package logger

import (
	"fmt"
	"strconv"

	"airbrakes-ng/internal/imu"
)

// Headers is the fixed column set for every flight log. Column names follow
// the vendor channel names so post-flight tooling works on both live and
// bench logs. Cells not applicable to a row's packet variant are written
// empty, never omitted.
var Headers = []string{
	"state",
	"extension",
	"timestamp",

	// Raw packet channels.
	"gpsCorrelTimestampFlags",
	"gpsCorrelTimestampTow",
	"gpsCorrelTimestampWeekNum",
	"scaledAccelX",
	"scaledAccelY",
	"scaledAccelZ",
	"scaledGyroX",
	"scaledGyroY",
	"scaledGyroZ",

	// Estimated packet channels.
	"estFilterGpsTimeTow",
	"estFilterGpsTimeWeekNum",
	"estOrientQuaternion",
	"estAttitudeUncertQuaternion",
	"estFilterState",
	"estFilterDynamicsMode",
	"estFilterStatusFlags",
	"estPressureAlt",
	"estAngularRateX",
	"estAngularRateY",
	"estAngularRateZ",
	"estCompensatedAccelX",
	"estCompensatedAccelY",
	"estCompensatedAccelZ",
}

// row renders one packet into the fixed column set.
func row(state string, extension float64, pkt imu.Packet) []string {
	out := make([]string, len(Headers))
	out[0] = state
	out[1] = formatFloat(extension)
	out[2] = strconv.FormatInt(pkt.Timestamp(), 10)

	switch p := pkt.(type) {
	case *imu.RawPacket:
		out[3] = optInt(p.GPSCorrelFlags)
		out[4] = optFloat(p.GPSCorrelTOW)
		out[5] = optInt(p.GPSCorrelWeekNum)
		out[6] = optFloat(p.ScaledAccelX)
		out[7] = optFloat(p.ScaledAccelY)
		out[8] = optFloat(p.ScaledAccelZ)
		out[9] = optFloat(p.ScaledGyroX)
		out[10] = optFloat(p.ScaledGyroY)
		out[11] = optFloat(p.ScaledGyroZ)
	case *imu.EstimatedPacket:
		out[12] = optFloat(p.FilterGPSTimeTOW)
		out[13] = optInt(p.FilterGPSTimeWeekNum)
		out[14] = optQuat(p.OrientQuaternion)
		out[15] = optQuat(p.AttitudeUncertQuaternion)
		out[16] = optInt(p.FilterState)
		out[17] = optInt(p.FilterDynamicsMode)
		out[18] = optInt(p.FilterStatusFlags)
		out[19] = optFloat(p.PressureAlt)
		out[20] = optFloat(p.AngularRateX)
		out[21] = optFloat(p.AngularRateY)
		out[22] = optFloat(p.AngularRateZ)
		out[23] = optFloat(p.CompensatedAccelX)
		out[24] = optFloat(p.CompensatedAccelY)
		out[25] = optFloat(p.CompensatedAccelZ)
	}
	return out
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func optFloat(v *float64) string {
	if v == nil {
		return ""
	}
	return formatFloat(*v)
}

func optInt(v *int) string {
	if v == nil {
		return ""
	}
	return strconv.Itoa(*v)
}

// optQuat renders a quaternion as semicolon-joined components so it stays a
// single CSV cell.
func optQuat(q *[4]float64) string {
	if q == nil {
		return ""
	}
	return fmt.Sprintf("%s;%s;%s;%s",
		formatFloat(q[0]), formatFloat(q[1]), formatFloat(q[2]), formatFloat(q[3]))
}
