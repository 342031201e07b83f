package flow

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/recera/vango-flow/pkg/geom"
)

// MarshalJSON encodes the extent as "parent" or [[x1,y1],[x2,y2]].
func (e NodeExtent) MarshalJSON() ([]byte, error) {
	if e.Parent {
		return json.Marshal(ExtentParent)
	}
	return json.Marshal([2][2]float64(e.Coords))
}

// UnmarshalJSON accepts "parent" or a coordinate pair.
func (e *NodeExtent) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		if s != ExtentParent {
			return fmt.Errorf("flow: unknown extent %q", s)
		}
		*e = NodeExtent{Parent: true}
		return nil
	}
	var coords [2][2]float64
	if err := json.Unmarshal(data, &coords); err != nil {
		return fmt.Errorf("flow: invalid extent: %w", err)
	}
	*e = NodeExtent{Coords: geom.CoordinateExtent(coords)}
	return nil
}
