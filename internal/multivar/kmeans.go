package multivar

import (
	"math"
	"math/rand"

	"github.com/KaramelBytes/seascope/internal/dataset"
	"github.com/KaramelBytes/seascope/internal/errs"
	"golang.org/x/sync/errgroup"
)

// KMeans defaults.
const (
	DefaultSeed     = 42
	DefaultRestarts = 10
	DefaultMaxIter  = 300
)

// KMeansOptions configures Cluster. Zero Restarts and MaxIter take the
// defaults.
type KMeansOptions struct {
	K        int
	Seed     int64
	Restarts int
	MaxIter  int
}

// Clustering assigns every complete row to a cluster. Centroids are in
// standardized units.
type Clustering struct {
	Columns    []string    `json:"columns"`
	K          int         `json:"k"`
	RowIDs     []int       `json:"row_ids"`
	Labels     []int       `json:"labels"`
	Centroids  [][]float64 `json:"centroids"`
	Sizes      []int       `json:"sizes"`
	Inertia    float64     `json:"inertia"`
	Silhouette float64     `json:"silhouette"`
	Iterations int         `json:"iterations"`
}

// Members returns the source row IDs assigned to cluster k.
func (c *Clustering) Members(k int) []int {
	var out []int
	for i, l := range c.Labels {
		if l == k {
			out = append(out, c.RowIDs[i])
		}
	}
	return out
}

type fit struct {
	labels    []int
	centroids [][]float64
	inertia   float64
	iters     int
}

// Cluster runs seeded k-means++ over the standardized complete rows of cols
// and keeps the restart with the lowest inertia.
func Cluster(d *dataset.Dataset, cols []string, opt KMeansOptions) (*Clustering, error) {
	if opt.K < 2 {
		return nil, errs.Newf(errs.InvalidParameter, errs.StageAnalysis, "k must be at least 2, got %d", opt.K)
	}
	if opt.Restarts < 0 || opt.MaxIter < 0 {
		return nil, errs.New(errs.InvalidParameter, errs.StageAnalysis, "restarts and max iterations must not be negative")
	}
	if opt.Restarts == 0 {
		opt.Restarts = DefaultRestarts
	}
	if opt.MaxIter == 0 {
		opt.MaxIter = DefaultMaxIter
	}
	x, ids, err := matrix(d, cols)
	if err != nil {
		return nil, err
	}
	if opt.K > len(ids)-1 {
		return nil, errs.Newf(errs.InsufficientData, errs.StageAnalysis,
			"k=%d needs at least %d complete rows, got %d", opt.K, opt.K+1, len(ids)).WithDetail("rows", len(ids))
	}
	z, _ := Standardize(x)
	points := rowsOf(z)

	fits := make([]fit, opt.Restarts)
	var g errgroup.Group
	for r := range fits {
		g.Go(func() error {
			rng := rand.New(rand.NewSource(opt.Seed + int64(r)))
			fits[r] = lloyd(points, opt.K, opt.MaxIter, rng)
			return nil
		})
	}
	_ = g.Wait()

	best := 0
	for r := range fits {
		if fits[r].inertia < fits[best].inertia {
			best = r
		}
	}
	f := fits[best]
	c := &Clustering{
		Columns:    cols,
		K:          opt.K,
		RowIDs:     ids,
		Labels:     f.labels,
		Centroids:  f.centroids,
		Sizes:      make([]int, opt.K),
		Inertia:    f.inertia,
		Iterations: f.iters,
	}
	for _, l := range f.labels {
		c.Sizes[l]++
	}
	c.Silhouette = Silhouette(points, f.labels)
	return c, nil
}

// lloyd runs one k-means++ initialization followed by Lloyd iterations until
// assignments stop changing.
func lloyd(x [][]float64, k, maxIter int, rng *rand.Rand) fit {
	n := len(x)
	centroids := seedCentroids(x, k, rng)
	labels := make([]int, n)
	for i := range labels {
		labels[i] = -1
	}
	iters := 0
	for iters < maxIter {
		iters++
		changed := false
		for i, p := range x {
			best := nearest(p, centroids)
			if labels[i] != best {
				labels[i] = best
				changed = true
			}
		}
		if !changed {
			break
		}
		counts := make([]int, k)
		sums := make([][]float64, k)
		for j := range sums {
			sums[j] = make([]float64, len(x[0]))
		}
		for i, p := range x {
			counts[labels[i]]++
			for j, v := range p {
				sums[labels[i]][j] += v
			}
		}
		for j := range centroids {
			if counts[j] == 0 {
				continue
			}
			for m := range sums[j] {
				centroids[j][m] = sums[j][m] / float64(counts[j])
			}
		}
	}
	var inertia float64
	for i, p := range x {
		inertia += sqDist(p, centroids[labels[i]])
	}
	return fit{labels: labels, centroids: centroids, inertia: inertia, iters: iters}
}

// seedCentroids picks k starting centroids with the k-means++ rule: each
// next centroid is drawn with probability proportional to its squared
// distance from the nearest centroid already chosen.
func seedCentroids(x [][]float64, k int, rng *rand.Rand) [][]float64 {
	n := len(x)
	centroids := make([][]float64, 0, k)
	centroids = append(centroids, clone(x[rng.Intn(n)]))
	dist := make([]float64, n)
	for len(centroids) < k {
		var total float64
		for i, p := range x {
			dist[i] = sqDist(p, centroids[nearest(p, centroids)])
			total += dist[i]
		}
		next := rng.Intn(n)
		if total > 0 {
			r := rng.Float64() * total
			var acc float64
			for i, d := range dist {
				if d == 0 {
					continue
				}
				next = i
				if acc += d; acc >= r {
					break
				}
			}
		}
		centroids = append(centroids, clone(x[next]))
	}
	return centroids
}

func nearest(p []float64, centroids [][]float64) int {
	best, bestD := 0, math.Inf(1)
	for j, c := range centroids {
		if d := sqDist(p, c); d < bestD {
			best, bestD = j, d
		}
	}
	return best
}

func sqDist(a, b []float64) float64 {
	var s float64
	for i := range a {
		dx := a[i] - b[i]
		s += dx * dx
	}
	return s
}

func clone(v []float64) []float64 { return append([]float64(nil), v...) }

// Silhouette returns the mean silhouette coefficient of a labeling, or 0
// when fewer than two clusters are present.
func Silhouette(x [][]float64, labels []int) float64 {
	clusters := map[int]int{}
	for _, l := range labels {
		clusters[l]++
	}
	if len(clusters) < 2 || len(x) == 0 {
		return 0
	}
	var total float64
	for i := range x {
		sums := map[int]float64{}
		for j := range x {
			if i != j {
				sums[labels[j]] += math.Sqrt(sqDist(x[i], x[j]))
			}
		}
		own := clusters[labels[i]]
		if own == 1 {
			continue
		}
		a := sums[labels[i]] / float64(own-1)
		b := math.Inf(1)
		for l, size := range clusters {
			if l == labels[i] {
				continue
			}
			if m := sums[l] / float64(size); m < b {
				b = m
			}
		}
		if s := math.Max(a, b); s > 0 {
			total += (b - a) / s
		}
	}
	return total / float64(len(x))
}
