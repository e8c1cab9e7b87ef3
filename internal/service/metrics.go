package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// attributeResolutions counts get-or-create outcomes per kind.
	attributeResolutions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recipe_attribute_resolutions_total",
			Help: "Tag and ingredient names resolved during recipe writes, by outcome",
		},
		[]string{"kind", "outcome"},
	)

	imageUploads = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recipe_image_uploads_total",
			Help: "Recipe image uploads, by result",
		},
		[]string{"result"},
	)
)
