package ocr

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var enginesBusy = promauto.NewGauge(
	prometheus.GaugeOpts{
		Name: "mathocr_engine_workers_busy",
		Help: "Number of OCR engine instances currently running a detection",
	},
)
