package model_test

import (
	"errors"
	"testing"

	"github.com/themeaningofmeaning/garmin-fit-analyzer/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func TestOutcome(t *testing.T) {
	Convey("Given the three outcome constructors", t, func() {
		Convey("Accepted carries no reason and no error", func() {
			o := model.Accepted()
			So(o.Kind, ShouldEqual, model.OutcomeAccepted)
			So(o.Reason, ShouldBeEmpty)
			So(o.Err, ShouldBeNil)
		})

		Convey("Skipped carries its reason", func() {
			o := model.Skipped("unsupported_sport")
			So(o.Kind, ShouldEqual, model.OutcomeSkipped)
			So(o.Reason, ShouldEqual, "unsupported_sport")
			So(o.Err, ShouldBeNil)
		})

		Convey("Failed carries its error", func() {
			cause := errors.New("boom")
			o := model.Failed(cause)
			So(o.Kind, ShouldEqual, model.OutcomeFailed)
			So(o.Err, ShouldEqual, cause)
		})

		Convey("Kinds render stable labels for logs and metrics", func() {
			So(model.OutcomeAccepted.String(), ShouldEqual, "accepted")
			So(model.OutcomeSkipped.String(), ShouldEqual, "skipped")
			So(model.OutcomeFailed.String(), ShouldEqual, "failed")
		})
	})
}
