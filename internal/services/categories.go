package services

import (
	"context"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/gosimple/slug"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/omegashop/storefront/internal/models"
	"github.com/omegashop/storefront/internal/store"
)

// CategoryInput is the payload for creating or updating a category.
type CategoryInput struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
	ParentID    *int64 `json:"parentId"`
}

type CategoryService struct {
	store store.Store
	now   Clock
}

func NewCategoryService(s store.Store, now Clock) *CategoryService {
	return &CategoryService{store: s, now: now}
}

func (s *CategoryService) tree(ctx context.Context, categories store.CategoryRepository) (*models.CategoryTree, error) {
	all, err := categories.All(ctx)
	if err != nil {
		return nil, err
	}
	return models.NewCategoryTree(all), nil
}

func (in *CategoryInput) normalize() error {
	in.Name = strings.TrimSpace(in.Name)
	in.Description = strings.TrimSpace(in.Description)
	if n := utf8.RuneCountInString(in.Name); n < 2 || n > 100 {
		return invalid("category name must be 2 to 100 characters")
	}
	return nil
}

// checkPlacement validates the parent and the sibling name uniqueness for a
// category with the given id (0 for a new one).
func checkPlacement(ctx context.Context, r store.Repositories, tree *models.CategoryTree, id int64, in CategoryInput) error {
	if in.ParentID != nil {
		if id != 0 && *in.ParentID == id {
			return invalid("a category cannot be its own parent")
		}
		if _, ok := tree.Get(*in.ParentID); !ok {
			return errors.Wrapf(models.ErrNotFound, "parent category %d", *in.ParentID)
		}
		if id != 0 && tree.WouldCycle(id, *in.ParentID) {
			return invalid("category %d cannot be moved under its own descendant %d", id, *in.ParentID)
		}
	}

	exists, err := r.Categories().ExistsByNameAndParent(ctx, in.Name, in.ParentID, id)
	if err != nil {
		return err
	}
	if exists {
		return invalid("category %q already exists at this level", in.Name)
	}
	return nil
}

func (s *CategoryService) Create(ctx context.Context, p models.Principal, in CategoryInput) (*models.Category, error) {
	if err := requireRole(p, models.RoleAdmin); err != nil {
		return nil, err
	}
	if err := in.normalize(); err != nil {
		return nil, err
	}

	c := &models.Category{
		Name:        in.Name,
		Slug:        slug.Make(in.Name),
		Description: in.Description,
		ParentID:    in.ParentID,
		CreatedAt:   s.now(),
	}
	err := s.store.InTx(ctx, func(r store.Repositories) error {
		tree, err := s.tree(ctx, r.Categories())
		if err != nil {
			return err
		}
		if err := checkPlacement(ctx, r, tree, 0, in); err != nil {
			return err
		}
		return r.Categories().Create(ctx, c)
	})
	if err != nil {
		return nil, err
	}
	log.WithFields(log.Fields{"categoryId": c.ID, "name": c.Name, "admin": p.Username}).Info("category created")
	return c, nil
}

// Update renames or moves a category, refusing moves that would make it its
// own ancestor.
func (s *CategoryService) Update(ctx context.Context, p models.Principal, id int64, in CategoryInput) (*models.Category, error) {
	if err := requireRole(p, models.RoleAdmin); err != nil {
		return nil, err
	}
	if err := in.normalize(); err != nil {
		return nil, err
	}

	var c *models.Category
	err := s.store.InTx(ctx, func(r store.Repositories) error {
		var err error
		if c, err = r.Categories().Get(ctx, id); err != nil {
			return err
		}
		tree, err := s.tree(ctx, r.Categories())
		if err != nil {
			return err
		}
		if err := checkPlacement(ctx, r, tree, id, in); err != nil {
			return err
		}
		c.Name = in.Name
		c.Slug = slug.Make(in.Name)
		c.Description = in.Description
		c.ParentID = in.ParentID
		return r.Categories().Update(ctx, c)
	})
	if err != nil {
		return nil, err
	}
	log.WithFields(log.Fields{"categoryId": id, "admin": p.Username}).Info("category updated")
	return c, nil
}

// Delete removes a category that has neither products nor children.
func (s *CategoryService) Delete(ctx context.Context, p models.Principal, id int64) error {
	if err := requireRole(p, models.RoleAdmin); err != nil {
		return err
	}
	err := s.store.InTx(ctx, func(r store.Repositories) error {
		if _, err := r.Categories().Get(ctx, id); err != nil {
			return err
		}
		products, err := r.Products().CountByCategory(ctx, id)
		if err != nil {
			return err
		}
		if products > 0 {
			return errors.Wrapf(models.ErrInvalidState, "category %d still has %d products", id, products)
		}
		children, err := r.Categories().CountChildren(ctx, id)
		if err != nil {
			return err
		}
		if children > 0 {
			return errors.Wrapf(models.ErrInvalidState, "category %d still has %d subcategories", id, children)
		}
		return r.Categories().Delete(ctx, id)
	})
	if err != nil {
		return err
	}
	log.WithFields(log.Fields{"categoryId": id, "admin": p.Username}).Info("category deleted")
	return nil
}

// Get returns the category with its full path.
func (s *CategoryService) Get(ctx context.Context, id int64) (*models.CategoryNode, error) {
	tree, err := s.tree(ctx, s.store.Categories())
	if err != nil {
		return nil, err
	}
	c, ok := tree.Get(id)
	if !ok {
		return nil, errors.Wrapf(models.ErrNotFound, "category %d", id)
	}
	return &models.CategoryNode{Category: c, Path: tree.Path(id)}, nil
}

// Tree returns the nested category tree.
func (s *CategoryService) Tree(ctx context.Context) ([]models.CategoryNode, error) {
	tree, err := s.tree(ctx, s.store.Categories())
	if err != nil {
		return nil, err
	}
	return tree.Roots(), nil
}

// List returns every category with its path, ordered by path.
func (s *CategoryService) List(ctx context.Context) ([]models.CategoryNode, error) {
	all, err := s.store.Categories().All(ctx)
	if err != nil {
		return nil, err
	}
	tree := models.NewCategoryTree(all)
	out := make([]models.CategoryNode, 0, len(all))
	for _, c := range all {
		out = append(out, models.CategoryNode{Category: c, Path: tree.Path(c.ID)})
	}
	sortByPath(out)
	return out, nil
}

// Descendants returns id and every category below it.
func (s *CategoryService) Descendants(ctx context.Context, id int64) ([]int64, error) {
	tree, err := s.tree(ctx, s.store.Categories())
	if err != nil {
		return nil, err
	}
	ids := tree.Descendants(id)
	if ids == nil {
		return nil, errors.Wrapf(models.ErrNotFound, "category %d", id)
	}
	return ids, nil
}

func sortByPath(nodes []models.CategoryNode) {
	sort.SliceStable(nodes, func(i, j int) bool {
		return strings.ToLower(nodes[i].Path) < strings.ToLower(nodes[j].Path)
	})
}
