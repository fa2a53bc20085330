package store

import (
	"fmt"
	"strings"

	"github.com/zjrosen/kindhub/internal/entity"
)

const projectsRoot = "/projects"

// ProjectPath returns the path of a project document.
func ProjectPath(project string) string {
	return projectsRoot + "/" + project
}

// CollectionPath returns the collection holding entities of type t in a
// project. Projects live in the root collection.
func CollectionPath(project string, t entity.EntityType) string {
	if t == entity.TypeProject {
		return projectsRoot
	}
	return ProjectPath(project) + "/" + t.Plural()
}

// EntityPath returns the document path of an entity. Projects are keyed by
// name, every other entity by id.
func EntityPath(project string, t entity.EntityType, id string) string {
	if t == entity.TypeProject {
		return ProjectPath(project)
	}
	return CollectionPath(project, t) + "/" + id
}

// PathOf returns the document path of e.
func PathOf(e *entity.Entity) string {
	if e.Type == entity.TypeProject {
		return ProjectPath(e.Name)
	}
	return EntityPath(e.Project, e.Type, e.ID)
}

// ParsePath splits a document path into project, entity type and id. For
// project paths the id is empty.
func ParsePath(path string) (project string, t entity.EntityType, id string, err error) {
	parts := strings.Split(strings.TrimPrefix(path, "/"), "/")
	if len(parts) < 2 || parts[0] != "projects" || parts[1] == "" {
		return "", "", "", fmt.Errorf("invalid store path %q", path)
	}
	project = parts[1]

	switch len(parts) {
	case 2:
		return project, entity.TypeProject, "", nil
	case 4:
		for _, candidate := range entity.EntityTypes() {
			if candidate != entity.TypeProject && candidate.Plural() == parts[2] {
				if parts[3] == "" {
					break
				}
				return project, candidate, parts[3], nil
			}
		}
	}
	return "", "", "", fmt.Errorf("invalid store path %q", path)
}

// isChild reports whether path sits directly below collection.
func isChild(collection, path string) bool {
	rest, ok := strings.CutPrefix(path, collection+"/")
	return ok && rest != "" && !strings.Contains(rest, "/")
}
