package chromedp_source

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/user/imagegrab-service/internal/entity"
	"github.com/user/imagegrab-service/internal/proxy"
	"github.com/user/imagegrab-service/internal/repository"
)

// collectFramesScript walks the document and every same-origin (i)frame
// depth-first and returns one list of images per document. Cross-origin
// frames throw on contentDocument access and are skipped.
const collectFramesScript = `(() => {
	const frames = [];
	const collect = (doc) => {
		frames.push(Array.from(doc.querySelectorAll("img")).map((img) => ({
			src: img.src,
			width: img.naturalWidth || 0,
			height: img.naturalHeight || 0,
		})));
		for (const frame of doc.querySelectorAll("iframe, frame")) {
			try {
				if (frame.contentDocument) {
					collect(frame.contentDocument);
				}
			} catch (e) {}
		}
	};
	collect(document);
	return frames;
})()`

// BrowserSource renders pages in headless Chrome and reads the natural size
// of every rendered image.
type BrowserSource struct {
	allocatorPool *sync.Pool
	cancels       []context.CancelFunc
	mu            sync.Mutex
	timeout       time.Duration
	logger        *zap.Logger
}

// NewBrowserSource creates a page source backed by chromedp. maxConcurrency
// allocators are pre-warmed.
func NewBrowserSource(maxConcurrency int, pageLoadTimeout time.Duration, pm *proxy.Manager, l *zap.Logger) *BrowserSource {
	s := &BrowserSource{timeout: pageLoadTimeout, logger: l}
	s.allocatorPool = &sync.Pool{
		New: func() interface{} {
			opts := append(chromedp.DefaultExecAllocatorOptions[:],
				chromedp.Flag("headless", true),
				chromedp.Flag("disable-gpu", true),
				chromedp.Flag("no-sandbox", true),
				chromedp.Flag("disable-dev-shm-usage", true),
				chromedp.UserAgent(pm.GetUserAgent()),
			)
			if p := pm.GetProxy(); p != "" {
				opts = append(opts, chromedp.ProxyServer(p))
			}
			allocCtx, cancel := chromedp.NewExecAllocator(context.Background(), opts...)
			s.mu.Lock()
			s.cancels = append(s.cancels, cancel)
			s.mu.Unlock()
			return allocCtx
		},
	}

	// Pre-warm the pool
	for i := 0; i < maxConcurrency; i++ {
		allocCtx := s.allocatorPool.Get().(context.Context)
		s.allocatorPool.Put(allocCtx)
	}
	return s
}

var _ repository.PageSource = (*BrowserSource)(nil)

// RenderedImages navigates to pageURL and returns the images of every frame.
func (s *BrowserSource) RenderedImages(ctx context.Context, pageURL string) ([][]entity.RenderedImage, error) {
	allocCtx := s.allocatorPool.Get().(context.Context)
	defer s.allocatorPool.Put(allocCtx)

	// Create a new browser context from the allocator
	taskCtx, cancel := chromedp.NewContext(allocCtx, chromedp.WithLogf(s.logger.Sugar().Debugf))
	defer cancel()

	// Bound the whole extraction, and honour the caller's cancellation.
	taskCtx, cancel = context.WithTimeout(taskCtx, s.timeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	start := time.Now()
	var frames [][]entity.RenderedImage
	err := chromedp.Run(taskCtx,
		chromedp.Navigate(pageURL),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Evaluate(collectFramesScript, &frames, func(p *runtime.EvaluateParams) *runtime.EvaluateParams {
			return p.WithReturnByValue(true)
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("rendering %s: %w", pageURL, err)
	}

	s.logger.Info("page rendered",
		zap.String("page", pageURL),
		zap.Int("frames", len(frames)),
		zap.Duration("duration", time.Since(start)),
	)
	return frames, nil
}

// Close shuts down every browser started by the source.
func (s *BrowserSource) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, cancel := range s.cancels {
		cancel()
	}
	s.cancels = nil
}
