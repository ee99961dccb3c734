package db

import (
	"testing"

	"github.com/mongodb-labs/mongomirror/common/testtype"
	. "github.com/smartystreets/goconvey/convey"
)

func TestVersionCmp(t *testing.T) {
	testtype.SkipUnlessTestType(t, testtype.UnitTestType)

	cases := []struct {
		v1, v2 Version
		want   int
	}{
		{Version{7, 0, 12}, Version{7, 0, 12}, 0},
		{Version{7, 0, 12}, Version{7, 0, 13}, -1},
		{Version{7, 0, 13}, Version{7, 0, 12}, 1},
		{Version{6, 3, 0}, Version{6, 2, 9}, 1},
		{Version{6, 2, 9}, Version{6, 3, 0}, -1},
		{Version{8, 0, 0}, Version{7, 9, 9}, 1},
		{Version{7, 9, 9}, Version{8, 0, 0}, -1},
		{Version{0, 0, 0}, Version{0, 0, 0}, 0},
	}

	for _, c := range cases {
		if got := c.v1.Cmp(c.v2); got != c.want {
			t.Errorf("%v cmp %v: got %d, wanted %d", c.v1, c.v2, got, c.want)
		}
	}
}

func TestVersionComparisons(t *testing.T) {
	testtype.SkipUnlessTestType(t, testtype.UnitTestType)

	Convey("With versions around a release boundary", t, func() {
		So((Version{4, 4, 29}).LT(Version{5, 0, 0}), ShouldBeTrue)
		So((Version{5, 0, 0}).LT(Version{5, 0, 0}), ShouldBeFalse)
		So((Version{5, 0, 1}).GT(Version{5, 0, 0}), ShouldBeTrue)
		So((Version{5, 0, 0}).GT(Version{5, 0, 0}), ShouldBeFalse)
		So((Version{5, 0, 0}).GTE(Version{5, 0, 0}), ShouldBeTrue)
		So((Version{4, 4, 29}).GTE(Version{5, 0, 0}), ShouldBeFalse)
	})
}

func TestStrToVersion(t *testing.T) {
	testtype.SkipUnlessTestType(t, testtype.UnitTestType)

	Convey("With server version strings", t, func() {
		Convey("a plain release string parses", func() {
			v, err := StrToVersion("7.0.12")
			So(err, ShouldBeNil)
			So(v, ShouldResemble, Version{7, 0, 12})
			So(v.String(), ShouldEqual, "7.0.12")
		})

		Convey("pre-release and build suffixes are ignored", func() {
			v, err := StrToVersion("8.1.0-rc2")
			So(err, ShouldBeNil)
			So(v, ShouldResemble, Version{8, 1, 0})

			v, err = StrToVersion("6.0.17+git.deadbeef")
			So(err, ShouldBeNil)
			So(v, ShouldResemble, Version{6, 0, 17})
		})

		Convey("too few parts fail", func() {
			_, err := StrToVersion("7.0")
			So(err, ShouldNotBeNil)
		})

		Convey("non-numeric parts fail", func() {
			_, err := StrToVersion("7.x.12")
			So(err, ShouldNotBeNil)
		})
	})
}

func TestMongoCanAcceptLiteralZeroTimestamp(t *testing.T) {
	testtype.SkipUnlessTestType(t, testtype.UnitTestType)

	Convey("With servers on and off the backport trains", t, func() {
		So(MongoCanAcceptLiteralZeroTimestamp(Version{8, 0, 0}), ShouldBeTrue)
		So(MongoCanAcceptLiteralZeroTimestamp(Version{8, 1, 3}), ShouldBeTrue)

		So(MongoCanAcceptLiteralZeroTimestamp(Version{7, 0, 13}), ShouldBeTrue)
		So(MongoCanAcceptLiteralZeroTimestamp(Version{7, 0, 12}), ShouldBeFalse)
		So(MongoCanAcceptLiteralZeroTimestamp(Version{7, 3, 999}), ShouldBeFalse)

		So(MongoCanAcceptLiteralZeroTimestamp(Version{6, 0, 17}), ShouldBeTrue)
		So(MongoCanAcceptLiteralZeroTimestamp(Version{6, 0, 16}), ShouldBeFalse)

		So(MongoCanAcceptLiteralZeroTimestamp(Version{5, 0, 29}), ShouldBeTrue)
		So(MongoCanAcceptLiteralZeroTimestamp(Version{5, 0, 28}), ShouldBeFalse)

		So(MongoCanAcceptLiteralZeroTimestamp(Version{4, 0, 28}), ShouldBeFalse)
	})
}
