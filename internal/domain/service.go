package domain

import (
	"context"
	"time"
)

// 集合命名空间，两个后端一致
const (
	ColUsers         = "users"
	ColProducts      = "products"
	ColCategories    = "categories"
	ColCarts         = "carts"
	ColOrders        = "orders"
	ColReviews       = "reviews"
	ColJobs          = "jobs"
	ColJobCategories = "jobCategories"
	ColJobReviews    = "jobReviews"
	ColChatMessages  = "chatMessages"
	ColNotifications = "notifications"
	ColWishlists     = "wishlists"
	ColSavedJobs     = "savedJobs"
	ColActivityLogs  = "activityLogs"
	ColSettings      = "settings"
	ColBlobs         = "blobs"
)

const (
	KindLocal  = "local"
	KindRemote = "remote"
)

type ProductFilter struct {
	Search     string
	CategoryID string
}

type JobFilter struct {
	Status     string
	CategoryID string
	Search     string
	CreatedBy  string
	AcceptedBy string
}

// BlobStore 键式二进制存储，商品图片专用。删除按 id 幂等。
type BlobStore interface {
	PutBlob(ctx context.Context, id string, data []byte) error
	GetBlob(ctx context.Context, id string) ([]byte, error)
	DeleteBlob(ctx context.Context, id string) error
}

// DataService 是数据服务层的唯一行为契约，由 localdb 与 mongodb
// 两个后端分别实现，可观测行为必须一致：
//
//   - find 类操作查无返回 (nil, nil)，不报错
//   - list 类操作按插入序返回，文档化的例外按各自排序
//     （活动日志/通知新在前，收藏按加入时间倒序）
//   - create 类操作由实现分配 id 与创建时间，调用方不传
//   - 切换后端对调用方透明，派生聚合在任一后端上结果相同
type DataService interface {
	BlobStore

	Kind() string
	Ping(ctx context.Context) error
	Close(ctx context.Context) error

	// Seed 空库一次性播种（分类、职位分类、管理员、基础设置）。
	// 以 settings 里的标记判定，重复调用为 no-op。
	Seed(ctx context.Context) error

	// users
	CreateUser(ctx context.Context, u *User) (*User, error)
	UserByID(ctx context.Context, id string) (*User, error)
	UserByEmail(ctx context.Context, email string) (*User, error)
	ListUsers(ctx context.Context) ([]User, error)
	UpdateUser(ctx context.Context, u *User) error
	DeleteUser(ctx context.Context, id string) error
	TouchLastLogin(ctx context.Context, id string) error

	// categories
	CreateCategory(ctx context.Context, c *Category) (*Category, error)
	CategoryByID(ctx context.Context, id string) (*Category, error)
	CategoryBySlug(ctx context.Context, slug string) (*Category, error)
	ListCategories(ctx context.Context) ([]Category, error)
	UpdateCategory(ctx context.Context, c *Category) error
	DeleteCategory(ctx context.Context, id string) error

	// job categories
	CreateJobCategory(ctx context.Context, c *JobCategory) (*JobCategory, error)
	JobCategoryByID(ctx context.Context, id string) (*JobCategory, error)
	JobCategoryBySlug(ctx context.Context, slug string) (*JobCategory, error)
	ListJobCategories(ctx context.Context) ([]JobCategory, error)
	UpdateJobCategory(ctx context.Context, c *JobCategory) error
	DeleteJobCategory(ctx context.Context, id string) error

	// products
	CreateProduct(ctx context.Context, p *Product) (*Product, error)
	ProductByID(ctx context.Context, id string) (*Product, error)
	ListProducts(ctx context.Context, f ProductFilter) ([]Product, error)
	UpdateProduct(ctx context.Context, p *Product) error
	DeleteProduct(ctx context.Context, id string) error
	SetPrimaryImage(ctx context.Context, productID, blobID string) error
	AddProductImage(ctx context.Context, productID, blobID string) error
	RemoveProductImage(ctx context.Context, productID, blobID string) error
	RecordProductView(ctx context.Context, id string) error
	RecomputeProductRating(ctx context.Context, id string) (*Product, error)

	// carts
	CartByUser(ctx context.Context, userID string) (*Cart, error)
	AddCartItem(ctx context.Context, userID, productID string, qty int) (*Cart, error)
	SetCartItemQty(ctx context.Context, userID, productID string, qty int) (*Cart, error)
	RemoveCartItem(ctx context.Context, userID, productID string) (*Cart, error)
	SaveForLater(ctx context.Context, userID, productID string) (*Cart, error)
	MoveToCart(ctx context.Context, userID, productID string) (*Cart, error)
	ClearCart(ctx context.Context, userID string) error

	// orders
	CreateOrder(ctx context.Context, o *Order) (*Order, error)
	OrderByID(ctx context.Context, id string) (*Order, error)
	OrdersByUser(ctx context.Context, userID string) ([]Order, error)
	ListOrders(ctx context.Context) ([]Order, error)
	UpdateOrderStatus(ctx context.Context, id, status string) error

	// reviews
	CreateReview(ctx context.Context, r *Review) (*Review, error)
	ReviewsByProduct(ctx context.Context, productID string) ([]Review, error)
	DeleteReview(ctx context.Context, id string) error

	// wishlist / saved jobs：on 为期望的成员状态，重复施加同一
	// 状态是幂等 no-op（changed=false）
	ToggleWishlist(ctx context.Context, userID, productID string, on bool) (changed bool, err error)
	WishlistProducts(ctx context.Context, userID string) ([]Product, error)
	ToggleSavedJob(ctx context.Context, userID, jobID string, on bool) (changed bool, err error)
	SavedJobs(ctx context.Context, userID string) ([]Job, error)

	// jobs
	CreateJob(ctx context.Context, j *Job) (*Job, error)
	JobByID(ctx context.Context, id string) (*Job, error)
	ListJobs(ctx context.Context, f JobFilter) ([]Job, error)
	UpdateJob(ctx context.Context, j *Job) error
	DeleteJob(ctx context.Context, id string) error
	AcceptJob(ctx context.Context, jobID, acceptorID string) (*Job, error)
	CompleteJob(ctx context.Context, jobID string) (*Job, error)
	ExpireJobs(ctx context.Context, now time.Time) (int, error)

	// job reviews
	CreateJobReview(ctx context.Context, r *JobReview) (*JobReview, error)
	JobReviewsByJob(ctx context.Context, jobID string) ([]JobReview, error)
	JobReviewsForUser(ctx context.Context, revieweeID string) ([]JobReview, error)
	RecomputeUserStats(ctx context.Context, userID string) (*UserStats, error)

	// chat
	SendChatMessage(ctx context.Context, m *ChatMessage) (*ChatMessage, error)
	ChatMessages(ctx context.Context, jobID, requesterID string) ([]ChatMessage, error)

	// notifications
	CreateNotification(ctx context.Context, n *Notification) (*Notification, error)
	NotificationsByUser(ctx context.Context, userID string) ([]Notification, error)
	MarkNotificationRead(ctx context.Context, userID, id string) error
	MarkAllNotificationsRead(ctx context.Context, userID string) error

	// activity logs
	AppendActivity(ctx context.Context, e *ActivityLog) error
	ListActivity(ctx context.Context, f ActivityFilter) ([]ActivityLog, error)

	// settings
	Setting(ctx context.Context, key string) (*Setting, error)
	PutSetting(ctx context.Context, key, value string) error

	// Reconcile 全量自愈：按源数据重算所有商品评分与用户统计，
	// 修复远端半途失败留下的陈旧聚合。
	Reconcile(ctx context.Context) error
}
