package export

import (
	"encoding/json"
	"math"
	"strconv"
)

// Float is a float64 whose JSON form survives non-finite values: NaN and
// the infinities are written as the strings "NaN", "+Inf" and "-Inf", the
// spellings the Prometheus text format uses.
type Float float64

func (f Float) MarshalJSON() ([]byte, error) {
	v := float64(f)
	switch {
	case math.IsNaN(v):
		return []byte(`"NaN"`), nil
	case math.IsInf(v, 1):
		return []byte(`"+Inf"`), nil
	case math.IsInf(v, -1):
		return []byte(`"-Inf"`), nil
	}

	return json.Marshal(v)
}

// UnmarshalJSON accepts a JSON number or one of the non-finite strings.
func (f *Float) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return err
		}
		*f = Float(v)
		return nil
	}

	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*f = Float(v)

	return nil
}
