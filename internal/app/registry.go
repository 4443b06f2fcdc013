package app

import (
	"github.com/toseeq44/automation-fb-sub003/internal/domain"
	"github.com/toseeq44/automation-fb-sub003/internal/infrastructure"
)

// NewToolRegistry returns the standard DownloaderFactory over the three
// external tools named in config.
func NewToolRegistry(tools *domain.ToolsConfig) DownloaderFactory {
	return func(logsDir string) map[string]domain.Downloader {
		return map[string]domain.Downloader{
			domain.ToolYTDLP:     infrastructure.NewYTDLPDownloader(tools.YTDLP, logsDir),
			domain.ToolGalleryDL: infrastructure.NewGalleryDLDownloader(tools.GalleryDL, logsDir),
			domain.ToolYouGet:    infrastructure.NewYouGetDownloader(tools.YouGet, logsDir),
		}
	}
}
