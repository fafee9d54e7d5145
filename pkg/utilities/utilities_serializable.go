package utilities

import "encoding/json"

type Serializable interface {
	Serialize() ([]byte, error)
}

func Serialize[T any](content T) ([]byte, error) {
	payload, err := json.Marshal(content)
	if err != nil {
		return nil, err
	}

	return payload, nil
}
