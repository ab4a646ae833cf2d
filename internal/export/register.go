package export

import (
	"TransportBench/internal/config"
	"TransportBench/internal/factory"
	"TransportBench/internal/model"
)

func init() {
	factory.RegisterWriter("json", func(def config.WriterDef) (model.Writer, error) {
		w, err := NewJSONWriter(def.JSON.Path)
		if err != nil {
			return nil, err
		}
		return w, nil
	})
	factory.RegisterWriter("csv", func(def config.WriterDef) (model.Writer, error) {
		w, err := NewCSVWriter(def.CSV.TimelinePath, def.CSV.SummaryPath)
		if err != nil {
			return nil, err
		}
		return w, nil
	})
}
