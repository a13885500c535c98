package serializer

import (
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

type snapshot struct {
	Name   string    `json:"name" msgpack:"name" bson:"name"`
	Nulls  []bool    `json:"nulls" msgpack:"nulls" bson:"nulls"`
	Ints   []int64   `json:"ints" msgpack:"ints" bson:"ints"`
	Floats []float64 `json:"floats" msgpack:"floats" bson:"floats"`
	Blobs  [][]byte  `json:"blobs" msgpack:"blobs" bson:"blobs"`
}

func TestByteSerializer(t *testing.T) {
	Convey("测试各编码保持快照内容", t, func() {
		in := snapshot{
			Name:   "Person",
			Nulls:  []bool{false, true},
			Ints:   []int64{1, time.Date(2024, 1, 2, 3, 4, 5, 6, time.UTC).UnixNano()},
			Floats: []float64{2.5, 0},
			Blobs:  [][]byte{[]byte("ab"), nil},
		}

		for _, codec := range []string{CodecMsgPack, CodecJSON, CodecBSON} {
			s, err := NewByteSerializer[snapshot](codec)
			So(err, ShouldBeNil)

			data, err := s.Serialize(in)
			So(err, ShouldBeNil)
			out, err := s.Deserialize(data)
			So(err, ShouldBeNil)
			So(out.Name, ShouldEqual, in.Name)
			So(out.Nulls, ShouldResemble, in.Nulls)
			So(out.Ints, ShouldResemble, in.Ints)
			So(out.Floats, ShouldResemble, in.Floats)
			So(string(out.Blobs[0]), ShouldEqual, "ab")
		}
	})

	Convey("测试原样序列化", t, func() {
		s, err := NewByteSerializer[string](CodecRaw)
		So(err, ShouldBeNil)
		data, err := s.Serialize("table:Person")
		So(err, ShouldBeNil)
		So(string(data), ShouldEqual, "table:Person")
		v, err := s.Deserialize(data)
		So(err, ShouldBeNil)
		So(v, ShouldEqual, "table:Person")

		_, err = NewRawSerializer[int]().Serialize(1)
		So(err, ShouldNotBeNil)
	})

	Convey("测试未知编码", t, func() {
		_, err := NewByteSerializer[string]("xml")
		So(err, ShouldNotBeNil)
	})
}
