package models

// ModelsToAutoMigrate returns every model gorm.AutoMigrate should manage.
// FTS5 virtual tables and triggers are not models and are created
// separately by pkg/store's bootstrap SQL.
func ModelsToAutoMigrate() []interface{} {
	return []interface{}{
		&Document{},
		&Vector{},
		&Cursor{},
		&GraphNode{},
		&GraphEdge{},
		&RingAssignment{},
		&UserIdentity{},
		&UserIdentityLink{},
		&IdentityMatch{},
		&Cluster{},
		&ClusterMember{},
	}
}
