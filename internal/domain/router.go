package domain

import "context"

// Router is a display-only entry of the network inventory
type Router struct {
	ID          string `bson:"_id" json:"id"`
	Name        string `bson:"name" json:"name"`
	IP          string `bson:"ip" json:"ip"`
	Status      string `bson:"status" json:"status"` // ONLINE, OFFLINE
	Uptime      string `bson:"uptime" json:"uptime"`
	CPULoad     int    `bson:"cpu_load" json:"cpu_load"`
	MemoryUsage int    `bson:"memory_usage" json:"memory_usage"`
}

// RouterRepository lists the router inventory
type RouterRepository interface {
	List(ctx context.Context) ([]*Router, error)
}
