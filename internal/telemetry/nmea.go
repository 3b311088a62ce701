package telemetry

import (
	"time"

	nmea "github.com/adrianmo/go-nmea"

	"github.com/oakfield-data/motion.report/internal/units"
)

// decodeNMEALine decodes a raw NMEA sentence into a GPS reading. Some GPS
// bridge apps forward NMEA verbatim instead of the JSON record format. Only
// RMC and GGA sentences produce readings; other valid sentence types return
// ok=false and are skipped.
func decodeNMEALine(line string, now time.Time) (Reading, bool, error) {
	sentence, err := nmea.Parse(line)
	if err != nil {
		return Reading{}, false, decodeErrorf([]byte(line), "invalid NMEA sentence: %v", err)
	}

	switch sentence.DataType() {
	case nmea.TypeRMC:
		m := sentence.(nmea.RMC)
		if m.Validity != nmea.ValidRMC {
			return Reading{}, false, nil
		}
		return Reading{
			Type:   TypeGPS,
			Name:   "nmea-rmc",
			Time:   now,
			Values: []float64{m.Latitude, m.Longitude, 0, units.KnotsToMetersPerSecond(m.Speed)},
		}, true, nil

	case nmea.TypeGGA:
		m := sentence.(nmea.GGA)
		if m.FixQuality == nmea.Invalid {
			return Reading{}, false, nil
		}
		return Reading{
			Type:   TypeGPS,
			Name:   "nmea-gga",
			Time:   now,
			Values: []float64{m.Latitude, m.Longitude, m.Altitude},
		}, true, nil
	}

	return Reading{}, false, nil
}
