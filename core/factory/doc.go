// Package factory instantiates pluggable modules, such as metrics sinks, from
// a type name and a map of raw settings decoded with Decode.
//
//	reg := factory.NewRegistry[metrics.MetricsSink]()
//	_ = reg.Register("influx", func(conf map[string]any) (metrics.MetricsSink, error) {
//		var c influxConf
//		if err := factory.Decode(conf, &c); err != nil {
//			return nil, err
//		}
//		return newInfluxSink(c), nil
//	})
//	sink, err := reg.Create(factory.ModuleConfig{Type: "influx", Conf: map[string]any{"bucket": "scheduler"}})
package factory
