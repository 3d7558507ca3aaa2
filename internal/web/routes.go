package web

import (
	"net/http"
	"os"
	"path/filepath"

	"github.com/go-chi/chi/v5"

	"github.com/kozaktomas/facefind/internal/embedding"
	"github.com/kozaktomas/facefind/internal/match"
	"github.com/kozaktomas/facefind/internal/store"
	"github.com/kozaktomas/facefind/internal/web/handlers"
)

func (s *Server) setupRoutes(st store.Store, engine *match.Engine, provider embedding.Provider) {
	searchHandler := handlers.NewSearchHandler(provider, engine, s.config.Web.MaxUploadSize, s.config.Embedding)
	statsHandler := handlers.NewStatsHandler(st, provider, s.config.Store.Backend)

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", handlers.HealthCheck)
		r.Get("/stats", statsHandler.Get)
		r.Post("/search", searchHandler.Search)
	})

	// Matched photos are served straight from the processed directory.
	photosDir := s.config.Ingest.PhotosDir
	s.router.Get("/photos/*", func(w http.ResponseWriter, r *http.Request) {
		name := chi.URLParam(r, "*")
		path := filepath.Join(photosDir, filepath.Clean("/"+name))
		if info, err := os.Stat(path); err != nil || info.IsDir() {
			http.NotFound(w, r)
			return
		}
		http.ServeFile(w, r, path)
	})

	s.router.Get("/", s.serveIndex)
}

func (s *Server) serveIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(indexPage))
}

const indexPage = `<!DOCTYPE html>
<html lang="en">
<head>
	<meta charset="utf-8">
	<meta name="viewport" content="width=device-width, initial-scale=1">
	<title>Find your photos</title>
	<style>
		body { font-family: sans-serif; max-width: 640px; margin: 2rem auto; padding: 0 1rem; }
		h1 { font-size: 1.4rem; }
		#results img { width: 100%; margin-bottom: 1rem; border-radius: 6px; }
		#status { color: #555; margin: 1rem 0; }
		button { padding: 0.5rem 1.2rem; font-size: 1rem; }
	</style>
</head>
<body>
	<h1>Find your photos</h1>
	<p>Upload a selfie and we'll find the photos you appear in.</p>
	<form id="form">
		<input type="file" name="file" accept="image/*" required>
		<button type="submit">Search</button>
	</form>
	<div id="status"></div>
	<div id="results"></div>
	<script>
		const form = document.getElementById('form');
		const status = document.getElementById('status');
		const results = document.getElementById('results');
		form.addEventListener('submit', async (e) => {
			e.preventDefault();
			status.textContent = 'Searching...';
			results.innerHTML = '';
			const data = new FormData(form);
			try {
				const resp = await fetch('/api/v1/search', { method: 'POST', body: data });
				const body = await resp.json();
				if (!resp.ok) {
					status.textContent = body.error || 'Search failed';
					return;
				}
				if (!body.matches || body.matches.length === 0) {
					status.textContent = 'No photos found. Try a clearer selfie.';
					return;
				}
				status.textContent = 'Found ' + body.matches.length + ' photo(s).';
				for (const name of body.matches) {
					const img = document.createElement('img');
					img.src = '/photos/' + encodeURIComponent(name);
					img.loading = 'lazy';
					results.appendChild(img);
				}
			} catch (err) {
				status.textContent = 'Search failed';
			}
		});
	</script>
</body>
</html>
`
