// Package decode parses Garmin FIT activity files into domain records.
//
// The wire format is handled by github.com/tormoder/fit; this package
// owns integrity classification and the exact scale/offset arithmetic
// the FIT profile declares for each numeric field. Decoding is a pure
// function of the input bytes.
package decode

import (
	"bytes"
	"errors"
	"time"

	"github.com/tormoder/fit"

	"github.com/themeaningofmeaning/garmin-fit-analyzer/internal/domain/model"
)

// FIT profile scale/offset constants. Getting these wrong is a silent
// unit bug, so they live in one place.
const (
	speedScale      = 1000.0               // mm/s -> m/s
	distanceScale   = 100.0                // cm -> m
	altitudeScale   = 5.0                  // 1/5 m steps
	altitudeOffset  = 500.0                // meters below stored zero
	timerScale      = 1000.0               // ms -> s
	semicirclesUnit = 180.0 / 2147483648.0 // 2^31 semicircles per 180 deg
)

// FIT "invalid" sentinels for unset fields.
const (
	invalidUint8  = 0xFF
	invalidUint16 = 0xFFFF
	invalidUint32 = 0xFFFFFFFF
)

const headerMinLen = 12

// Decode parses one FIT activity file. On any structural violation it
// returns a *Error and no activity; it never yields a partial result.
// Unknown non-critical message types are skipped by the underlying
// decoder and do not abort decoding.
func Decode(data []byte) (*model.DecodedActivity, error) {
	if len(data) < headerMinLen {
		return nil, newError(KindHeader, errors.New("file shorter than FIT header"))
	}
	if err := fit.CheckIntegrity(bytes.NewReader(data), true); err != nil {
		return nil, newError(KindHeader, err)
	}
	if err := fit.CheckIntegrity(bytes.NewReader(data), false); err != nil {
		return nil, newError(KindIntegrity, err)
	}

	fd, err := fit.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, newError(KindParse, err)
	}

	af, err := fd.Activity()
	if err != nil {
		return nil, newError(KindNotActivity, err)
	}
	if len(af.Sessions) == 0 {
		return nil, newError(KindNoSession, errors.New("activity has no session message"))
	}

	sess := af.Sessions[0]
	act := &model.DecodedActivity{
		Sport:         sportName(sess.Sport),
		SubSport:      subSportName(sess.SubSport),
		StartTime:     sess.StartTime.UTC(),
		TotalDistance: scaleUint32(uint32(sess.TotalDistance), distanceScale),
		TotalDuration: timerDuration(uint32(sess.TotalTimerTime)),
		AvgHeartRate:  heartRate(sess.AvgHeartRate),
		MaxHeartRate:  heartRate(sess.MaxHeartRate),
		AvgSpeed:      scaleUint16(uint16(sess.AvgSpeed), speedScale),
		MaxSpeed:      scaleUint16(uint16(sess.MaxSpeed), speedScale),
	}

	for _, lp := range af.Laps {
		act.Laps = append(act.Laps, model.Lap{
			StartTime: lp.StartTime.UTC(),
			Duration:  timerDuration(uint32(lp.TotalTimerTime)),
			Distance:  scaleUint32(uint32(lp.TotalDistance), distanceScale),
			AvgSpeed:  scaleUint16(uint16(lp.AvgSpeed), speedScale),
			AvgHR:     heartRate(lp.AvgHeartRate),
			MaxHR:     heartRate(lp.MaxHeartRate),
		})
	}

	var lastDistance float64
	for _, rec := range af.Records {
		tp := model.Trackpoint{Timestamp: rec.Timestamp.UTC()}

		if d := uint32(rec.Distance); d != invalidUint32 {
			lastDistance = float64(d) / distanceScale
		}
		tp.Distance = lastDistance

		if s := uint16(rec.Speed); s != invalidUint16 {
			v := float64(s) / speedScale
			tp.Speed = &v
		}
		if hr := uint8(rec.HeartRate); hr != invalidUint8 {
			v := int(hr)
			tp.HeartRate = &v
		}
		if alt := uint16(rec.Altitude); alt != invalidUint16 {
			v := float64(alt)/altitudeScale - altitudeOffset
			tp.Elevation = &v
		}
		// Positions at exactly (0,0) are the device's "no fix" filler.
		if rec.PositionLat.Semicircles() != 0 && rec.PositionLong.Semicircles() != 0 {
			lat := float64(rec.PositionLat.Semicircles()) * semicirclesUnit
			lon := float64(rec.PositionLong.Semicircles()) * semicirclesUnit
			if lat >= -90 && lat <= 90 && lon >= -180 && lon <= 180 {
				tp.Lat, tp.Lon = &lat, &lon
			}
		}

		act.Trackpoints = append(act.Trackpoints, tp)
	}

	return act, nil
}

// scaleUint16 converts a scaled FIT uint16, mapping the invalid
// sentinel to zero.
func scaleUint16(v uint16, scale float64) float64 {
	if v == invalidUint16 {
		return 0
	}
	return float64(v) / scale
}

func scaleUint32(v uint32, scale float64) float64 {
	if v == invalidUint32 {
		return 0
	}
	return float64(v) / scale
}

func timerDuration(ms uint32) time.Duration {
	if ms == invalidUint32 {
		return 0
	}
	return time.Duration(float64(ms)/timerScale*float64(time.Second))
}

func heartRate(v uint8) int {
	if v == invalidUint8 {
		return 0
	}
	return int(v)
}

// sportName maps the FIT sport enum onto the profile's lowercase
// vocabulary. Sports outside the map decode fine and are left to the
// guard to skip.
func sportName(s fit.Sport) string {
	switch s {
	case fit.SportRunning:
		return "running"
	case fit.SportCycling:
		return "cycling"
	case fit.SportSwimming:
		return "swimming"
	case fit.SportWalking:
		return "walking"
	case fit.SportHiking:
		return "hiking"
	case fit.SportTransition:
		return "transition"
	case fit.SportFitnessEquipment:
		return "fitness_equipment"
	case fit.SportGeneric:
		return "generic"
	case fit.SportInvalid:
		return ""
	default:
		return "other"
	}
}

func subSportName(s fit.SubSport) string {
	switch s {
	case fit.SubSportTrail:
		return "trail"
	case fit.SubSportTreadmill:
		return "treadmill"
	case fit.SubSportTrack:
		return "track"
	case fit.SubSportStreet:
		return "street"
	case fit.SubSportGeneric:
		return "generic"
	case fit.SubSportInvalid:
		return ""
	default:
		return "other"
	}
}
