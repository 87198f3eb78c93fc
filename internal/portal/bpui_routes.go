package portal

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/gin-gonic/gin"

	"github.com/betterportal/gateway/internal/auth/domain"
	"github.com/betterportal/gateway/internal/bpui"
	"github.com/betterportal/gateway/internal/cachecontrol"
	"github.com/betterportal/gateway/internal/capability"
)

// InitBPUI mounts the static responder's sub-trees under /bpui/:assetKey/*
// when basePath contains a bpui directory, and publishes the bundle's view
// definitions through the internal uiServices capability. A missing bpui
// directory is not an error; the mount is simply skipped.
func (p *Portal) InitBPUI(serviceName, basePath string) error {
	bpuiDir := filepath.Join(basePath, "bpui")
	if _, err := os.Stat(bpuiDir); err != nil {
		if os.IsNotExist(err) {
			p.logger.Info("bpui disabled, directory missing",
				slog.String("dir", bpuiDir),
				slog.String("service", serviceName),
			)
			return nil
		}
		return err
	}

	p.logger.Info("bpui enabled",
		slog.String("dir", bpuiDir),
		slog.String("service", serviceName),
	)

	responder, err := bpui.NewResponder(bpuiDir, p.logger)
	if err != nil {
		return err
	}

	views, err := bpui.LoadViewDefinitions(filepath.Join(bpuiDir, "views"))
	if err != nil {
		return err
	}
	p.registry.Register(capability.Registration{
		Service: serviceName,
		Kind:    capability.KindUIServices,
		Keys:    map[string]string{"views": "views"},
		Handler: func(_ context.Context, _ *domain.AuthToken, _ string, _ string, query map[string]string) (any, error) {
			if theme, ok := query["theme"]; ok {
				themed, found := views[theme]
				if !found {
					return nil, nil
				}
				return themed, nil
			}
			return views, nil
		},
	})

	p.Get(serviceName, "/bpui/:assetKey/*filepath", nil, p.assetHandler(responder))
	return nil
}

// assetHandler serves one resolved bundle file per request, honoring the
// redirect-then-resolve contract of the responder.
func (p *Portal) assetHandler(responder *bpui.Responder) HandlerFunc {
	return func(c *gin.Context, _ *Identity, cache CacheCheck) {
		subtree := c.Param("assetKey")
		resolution := responder.Resolve(subtree, c.Param("filepath"))

		switch resolution.Status {
		case 302:
			p.gateway.RecordAssetResponse(c.Request.Context(), subtree, "redirect")
			c.Redirect(302, resolution.Location)

		case 404:
			p.gateway.RecordAssetResponse(c.Request.Context(), subtree, "not_found")
			c.String(404, "File not found: %s", resolution.Diagnostic)

		default:
			c.Header("Content-Type", resolution.ContentType)
			if cache(resolution.Hash, cachecontrol.Config{
				Ability:             cachecontrol.AbilityAll,
				MaxAge:              60 * 60 * 24,
				RevalidationSeconds: 60 * 60,
			}) {
				p.gateway.RecordAssetResponse(c.Request.Context(), subtree, "miss")
				c.File(resolution.FilePath)
				return
			}
			p.gateway.RecordAssetResponse(c.Request.Context(), subtree, "hit")
		}
	}
}
