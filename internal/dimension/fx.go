package dimension

import (
	"github.com/smallbiznis/costwise/internal/dimension/repository"
	"go.uber.org/fx"
)

var Module = fx.Module("dimension",
	fx.Provide(repository.Provide),
)
