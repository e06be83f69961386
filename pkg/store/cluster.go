package store

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/minnahq/minna/pkg/models"
)

// unionFind is a classic disjoint-set structure keyed by slice index.
type unionFind struct {
	parent []int
	rank   []int
}

func newUnionFind(n int) *unionFind {
	uf := &unionFind{parent: make([]int, n), rank: make([]int, n)}
	for i := range uf.parent {
		uf.parent[i] = i
	}
	return uf
}

func (uf *unionFind) find(x int) int {
	if uf.parent[x] != x {
		uf.parent[x] = uf.find(uf.parent[x])
	}
	return uf.parent[x]
}

func (uf *unionFind) union(a, b int) {
	ra, rb := uf.find(a), uf.find(b)
	if ra == rb {
		return
	}
	if uf.rank[ra] < uf.rank[rb] {
		ra, rb = rb, ra
	}
	uf.parent[rb] = ra
	if uf.rank[ra] == uf.rank[rb] {
		uf.rank[ra]++
	}
}

// Cluster agglomerates the vector set via union-find: any pair whose
// cosine similarity is at least minSimilarity is joined, then groups
// smaller than minPoints are discarded. Existing cluster rows are
// replaced wholesale.
func (s *Store) Cluster(minSimilarity float64, minPoints int) ([]models.Cluster, error) {
	rows, err := s.ListVectors()
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}

	decoded := make([][]float32, len(rows))
	for i, r := range rows {
		decoded[i] = decodeVector(r.Embedding, r.Dim)
	}

	uf := newUnionFind(len(rows))
	for i := 0; i < len(rows); i++ {
		for j := i + 1; j < len(rows); j++ {
			if cosineSimilarity(decoded[i], decoded[j]) >= minSimilarity {
				uf.union(i, j)
			}
		}
	}

	groups := make(map[int][]int64)
	for i, row := range rows {
		root := uf.find(i)
		groups[root] = append(groups[root], row.DocID)
	}

	return s.persistClusters(groups, minPoints)
}

func (s *Store) persistClusters(groups map[int][]int64, minPoints int) ([]models.Cluster, error) {
	var created []models.Cluster

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec("DELETE FROM cluster_members").Error; err != nil {
			return fmt.Errorf("clearing cluster members: %w", err)
		}
		if err := tx.Exec("DELETE FROM clusters").Error; err != nil {
			return fmt.Errorf("clearing clusters: %w", err)
		}

		now := time.Now().UTC()
		label := 1
		for _, docIDs := range groups {
			if len(docIDs) < minPoints {
				continue
			}
			cluster := models.Cluster{
				Label:     fmt.Sprintf("cluster-%d", label),
				CreatedAt: now,
			}
			label++
			if err := tx.Create(&cluster).Error; err != nil {
				return fmt.Errorf("creating cluster: %w", err)
			}
			for _, docID := range docIDs {
				if err := tx.Create(&models.ClusterMember{ClusterID: cluster.ID, DocID: docID}).Error; err != nil {
					return fmt.Errorf("adding cluster member: %w", err)
				}
			}
			created = append(created, cluster)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// DocIDsByClusterLabel returns the document ids belonging to the
// cluster with the given label, used by pack filtering in get_context.
func (s *Store) DocIDsByClusterLabel(label string) ([]int64, error) {
	var cluster models.Cluster
	if err := s.db.Where("label = ?", label).First(&cluster).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("looking up cluster %q: %w", label, err)
	}

	var members []models.ClusterMember
	if err := s.db.Where("cluster_id = ?", cluster.ID).Find(&members).Error; err != nil {
		return nil, fmt.Errorf("listing members of cluster %q: %w", label, err)
	}

	ids := make([]int64, len(members))
	for i, m := range members {
		ids[i] = m.DocID
	}
	return ids, nil
}
