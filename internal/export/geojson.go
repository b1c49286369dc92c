package export

import (
	"encoding/json"

	"github.com/tidwall/pretty"
)

func encodeGeoJSON(_ *Exporter, r *request) ([]byte, error) {
	var data []byte
	var err error
	if r.cfg.IncludeMetadata {
		data, err = r.fc.MarshalWithMetadata()
	} else {
		data, err = json.Marshal(r.fc)
	}
	if err != nil {
		return nil, err
	}
	return pretty.Pretty(data), nil
}
