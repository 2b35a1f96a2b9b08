package domain

// Ключи фич из каталога тарифов
const (
	FeatureBatchOperations       = "batch_operations"
	FeatureTemplates             = "templates"
	FeatureAI                    = "ai_features"
	FeatureAnalytics             = "analytics"
	FeaturePrioritySupport       = "priority_support"
	FeatureImageOptimization     = "image_optimization"
	FeatureLocationRandomization = "location_randomization"
)

// FeatureValue значение фичи в каталоге тарифов: булево включение
// либо строковый уровень (например, уровень аналитики).
type FeatureValue struct {
	Enabled bool   `json:"enabled"`
	Level   string `json:"level,omitempty"`
}

// BoolFeature создает булево значение фичи
func BoolFeature(enabled bool) FeatureValue {
	return FeatureValue{Enabled: enabled}
}

// LevelFeature создает уровневое значение фичи. Непустой уровень
// считается включенной фичей.
func LevelFeature(level string) FeatureValue {
	return FeatureValue{Enabled: level != "", Level: level}
}

// Granted сообщает, дает ли значение доступ к фиче
func (v FeatureValue) Granted() bool {
	if v.Level != "" {
		return true
	}
	return v.Enabled
}
