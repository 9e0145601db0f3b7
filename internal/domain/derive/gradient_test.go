package derive_test

import (
	"math"
	"testing"

	"github.com/themeaningofmeaning/garmin-fit-analyzer/internal/domain/derive"
	"github.com/themeaningofmeaning/garmin-fit-analyzer/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func TestColorFromNormalized(t *testing.T) {
	Convey("Given the intensity color ramp", t, func() {
		Convey("Then the anchor positions resolve to the anchor colors", func() {
			So(derive.ColorFromNormalized(0), ShouldResemble, model.RGB{R: 0x3b, G: 0x82, B: 0xf6})
			So(derive.ColorFromNormalized(0.25), ShouldResemble, model.RGB{R: 0x10, G: 0xb9, B: 0x81})
			So(derive.ColorFromNormalized(0.5), ShouldResemble, model.RGB{R: 0xe6, G: 0xe6, B: 0x00})
			So(derive.ColorFromNormalized(0.75), ShouldResemble, model.RGB{R: 0xf9, G: 0x73, B: 0x16})
			So(derive.ColorFromNormalized(1), ShouldResemble, model.RGB{R: 0xef, G: 0x44, B: 0x44})
		})

		Convey("Then out-of-range inputs clamp to the endpoints", func() {
			So(derive.ColorFromNormalized(-3), ShouldResemble, derive.ColorFromNormalized(0))
			So(derive.ColorFromNormalized(1.7), ShouldResemble, derive.ColorFromNormalized(1))
		})

		Convey("Then non-finite inputs degrade instead of panicking", func() {
			So(func() { derive.ColorFromNormalized(math.NaN()) }, ShouldNotPanic)
			So(derive.ColorFromNormalized(math.NaN()), ShouldResemble, derive.ColorFromNormalized(0))
			So(derive.ColorFromNormalized(math.Inf(-1)), ShouldResemble, derive.ColorFromNormalized(0))
			So(derive.ColorFromNormalized(math.Inf(1)), ShouldResemble, derive.ColorFromNormalized(1))
		})

		Convey("Then a position between anchors blends the neighboring pair", func() {
			c := derive.ColorFromNormalized(0.125)
			low := derive.ColorFromNormalized(0)
			high := derive.ColorFromNormalized(0.25)
			So(c.G, ShouldBeBetweenOrEqual, low.G, high.G)
			So(c.B, ShouldBeBetweenOrEqual, high.B, low.B)
		})
	})
}

func TestColorFromSpeed(t *testing.T) {
	Convey("Given a speed normalization range", t, func() {
		Convey("Then it matches the normalized entry point exactly", func() {
			So(derive.ColorFromSpeed(2, 2, 11), ShouldResemble, derive.ColorFromNormalized(0))
			So(derive.ColorFromSpeed(11, 2, 11), ShouldResemble, derive.ColorFromNormalized(1))
			So(derive.ColorFromSpeed(6.5, 2, 11), ShouldResemble, derive.ColorFromNormalized(0.5))
		})

		Convey("When the range is degenerate", func() {
			Convey("Then every speed maps to the midpoint color", func() {
				mid := derive.ColorFromNormalized(0.5)
				So(derive.ColorFromSpeed(5, 5, 5), ShouldResemble, mid)
				So(derive.ColorFromSpeed(0, 5, 5), ShouldResemble, mid)
				So(derive.ColorFromSpeed(7, 9, 3), ShouldResemble, mid)
			})
		})

		Convey("When the speed sits outside the range", func() {
			Convey("Then it clamps instead of extrapolating", func() {
				So(derive.ColorFromSpeed(1, 2, 11), ShouldResemble, derive.ColorFromNormalized(0))
				So(derive.ColorFromSpeed(50, 2, 11), ShouldResemble, derive.ColorFromNormalized(1))
			})
		})

		Convey("When the speed is NaN", func() {
			Convey("Then it maps to the bottom of the ramp without panicking", func() {
				So(func() { derive.ColorFromSpeed(math.NaN(), 2, 11) }, ShouldNotPanic)
				So(derive.ColorFromSpeed(math.NaN(), 2, 11), ShouldResemble, derive.ColorFromNormalized(0))
			})
		})
	})
}
