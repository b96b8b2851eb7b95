package tasks

import "taskstream/internal/config"

// Built-in task names.
const (
	TaskExampleStreaming = "example_streaming"
	TaskGenerateImage    = "generate_image_with_logo"
)

// DefaultRegistry wires the built-in tasks with their production
// dependencies. Both the API (for submission validation) and the worker (for
// dispatch) build the same registry, so the two processes always agree on
// which names exist.
func DefaultRegistry(cfg config.Tasks) *Registry {
	r := NewRegistry()

	mustRegister(r, TaskExampleStreaming, ExampleStreaming)

	img := &ImageTask{
		Model:   NewReplicateModel(cfg.ReplicateToken, cfg.ImageModel),
		Store:   &FSStore{Dir: cfg.AssetDir, BaseURL: cfg.AssetBaseURL},
		LogoURL: cfg.LogoURL,
		Fetch:   FetchURL,
	}
	mustRegister(r, TaskGenerateImage, img.Run)

	return r
}

func mustRegister(r *Registry, name string, h Handler) {
	if err := r.Register(name, h); err != nil {
		panic(err)
	}
}
