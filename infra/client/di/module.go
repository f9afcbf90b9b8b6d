package clientdi

import (
	"log/slog"

	"github.com/webitel/im-presence-service/config"
	"github.com/webitel/im-presence-service/infra/client/directory"
	"github.com/webitel/im-presence-service/internal/domain/model"
	"go.uber.org/fx"
)

var Module = fx.Module(
	"directory_clients",

	// [CONSTRUCTOR] Remote directory when configured, the static list otherwise
	fx.Provide(NewDirectorySource),
)

func NewDirectorySource(cfg *config.Config, logger *slog.Logger) (directory.Source, error) {
	if cfg.Directory.URL != "" {
		logger.Info("DIRECTORY_REMOTE", "url", cfg.Directory.URL)
		return directory.New(cfg.Directory.URL, cfg.Directory.Timeout, logger)
	}

	users := make([]model.User, 0, len(cfg.Directory.Users))
	for _, u := range cfg.Directory.Users {
		users = append(users, model.User{ID: model.UserID(u.ID), Name: u.Name, Email: u.Email})
	}
	src := directory.NewStatic(users)
	logger.Info("DIRECTORY_STATIC", "configured_users", len(users))
	return src, nil
}
