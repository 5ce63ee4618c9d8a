package store

import (
	"encoding/json"

	"github.com/pkg/errors"

	"laserdamage/model"
)

// Encode serializes a result. Float values survive the round trip exactly.
func Encode(r *model.SimulationResult) ([]byte, error) {
	b, err := json.Marshal(r)
	if err != nil {
		return nil, errors.Wrap(err, "encode result")
	}
	return b, nil
}

func Decode(b []byte) (*model.SimulationResult, error) {
	var r model.SimulationResult
	if err := json.Unmarshal(b, &r); err != nil {
		return nil, errors.Wrap(model.ErrDataInconsistency, err.Error())
	}
	return &r, nil
}
