package domain

// ModelSpecialization describes what a configured embedding model is best at.
// The ensemble embedder uses it to shift weight toward models that fit the
// analyzed query.
type ModelSpecialization string

const (
	SpecializationTechnical ModelSpecialization = "technical"
	SpecializationGeneral   ModelSpecialization = "general"
	SpecializationDomain    ModelSpecialization = "domain"
)

// EmbeddingModelConfig is one entry of the configured model ensemble.
type EmbeddingModelConfig struct {
	ID             string
	BaseWeight     float64
	Specialization ModelSpecialization
}

// ModelEmbedding is one model's vector for a given text, annotated with the
// adaptive weight assigned by the ensemble.
type ModelEmbedding struct {
	ModelID string
	Values  []float32
	Weight  float64
}

// FusedEmbedding is the weighted combination of the model embeddings that
// succeeded for a query. ModelWeights sum to 1.0 over contributing models.
type FusedEmbedding struct {
	Values       []float32
	ModelWeights map[string]float64
}
