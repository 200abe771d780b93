package backendtest

import (
	"context"
	"errors"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/teamcoffee/storefront/internal/domain"
	apperrors "github.com/teamcoffee/storefront/pkg/errors"
	"github.com/teamcoffee/storefront/pkg/httputil"
	"github.com/teamcoffee/storefront/pkg/validator"
)

type accountKey struct{}

func withAccount(ctx context.Context, u domain.User) context.Context {
	return context.WithValue(ctx, accountKey{}, u)
}

func caller(r *http.Request) domain.User {
	u, _ := r.Context().Value(accountKey{}).(domain.User)
	return u
}

// decode reads and validates a body, writing a 400 on failure.
func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	err := validator.DecodeAndValidate(r, dst)
	if err == nil {
		return true
	}
	var valErr *validator.ValidationError
	if !errors.As(err, &valErr) {
		err = apperrors.InvalidInput(err.Error())
	}
	httputil.WriteError(w, r, err, nil)
	return false
}

func pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil {
		httputil.WriteError(w, r, apperrors.InvalidInput("invalid "+name), nil)
		return 0, false
	}
	return id, true
}

// --- users ---

type registerBody struct {
	Username string      `json:"username" validate:"required"`
	Email    string      `json:"email" validate:"required,email"`
	Password string      `json:"password" validate:"required"`
	Address  string      `json:"address"`
	Role     domain.Role `json:"role"`
}

func (b *Backend) register(w http.ResponseWriter, r *http.Request) {
	var body registerBody
	if !decode(w, r, &body) {
		return
	}
	if body.Role == "" {
		body.Role = domain.RoleUser
	}

	b.mu.Lock()
	if _, exists := b.users[body.Email]; exists {
		b.mu.Unlock()
		httputil.WriteError(w, r, apperrors.Conflict("이미 존재하는 이메일입니다."), nil)
		return
	}
	acct := &account{
		User:     domain.User{Name: body.Username, Email: body.Email, Role: body.Role, Address: body.Address},
		password: body.Password,
	}
	b.users[body.Email] = acct
	b.mu.Unlock()

	b.ok(w, r, http.StatusCreated, "201-CREATED", "회원가입이 완료되었습니다.", domain.LoginResult{User: acct.User})
}

type loginBody struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

func (b *Backend) login(w http.ResponseWriter, r *http.Request) {
	var body loginBody
	if !decode(w, r, &body) {
		return
	}

	b.mu.Lock()
	acct, ok := b.users[body.Email]
	if !ok || acct.password != body.Password {
		b.mu.Unlock()
		httputil.WriteError(w, r, apperrors.AuthRequired("이메일 또는 비밀번호가 올바르지 않습니다."), nil)
		return
	}
	tokens := b.issueLocked(body.Email)
	user := acct.User
	b.mu.Unlock()

	http.SetCookie(w, &http.Cookie{Name: "AccessToken", Value: tokens.AccessToken, Path: "/", HttpOnly: true})
	b.ok(w, r, http.StatusOK, "200-OK", "로그인 성공", domain.LoginResult{User: user, Token: tokens})
}

func (b *Backend) logout(w http.ResponseWriter, r *http.Request) {
	token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")

	b.mu.Lock()
	if email, ok := b.access[token]; ok {
		b.dropTokensLocked(email)
	}
	b.mu.Unlock()

	http.SetCookie(w, &http.Cookie{Name: "AccessToken", Value: "", Path: "/", MaxAge: -1})
	b.ok(w, r, http.StatusOK, "200-LOGOUT", "로그아웃 되었습니다.", nil)
}

func (b *Backend) deleteUser(w http.ResponseWriter, r *http.Request) {
	email := r.URL.Query().Get("email")
	if u := caller(r); u.Email != email && u.Role != domain.RoleAdmin {
		httputil.WriteStatus(w, http.StatusForbidden)
		return
	}

	b.mu.Lock()
	if _, ok := b.users[email]; !ok {
		b.mu.Unlock()
		httputil.WriteStatus(w, http.StatusNotFound)
		return
	}
	delete(b.users, email)
	delete(b.wishes, email)
	b.dropTokensLocked(email)
	b.mu.Unlock()

	b.ok(w, r, http.StatusOK, "200-DELETED", "회원 탈퇴가 완료되었습니다.", nil)
}

func (b *Backend) dropTokensLocked(email string) {
	for t, e := range b.access {
		if e == email {
			delete(b.access, t)
		}
	}
	for t, e := range b.refresh {
		if e == email {
			delete(b.refresh, t)
		}
	}
}

type refreshBody struct {
	RefreshToken string `json:"refreshToken" validate:"required"`
}

func (b *Backend) refreshToken(w http.ResponseWriter, r *http.Request) {
	var body refreshBody
	if !decode(w, r, &body) {
		return
	}

	b.mu.Lock()
	email, ok := b.refresh[body.RefreshToken]
	if b.failRefresh || !ok {
		b.mu.Unlock()
		httputil.WriteError(w, r, apperrors.AuthRequired("리프레시 토큰이 유효하지 않습니다."), nil)
		return
	}
	delete(b.refresh, body.RefreshToken)
	tokens := b.issueLocked(email)
	b.refreshes++
	b.mu.Unlock()

	b.ok(w, r, http.StatusOK, "200-OK", "토큰이 재발급되었습니다.", tokens)
}

// --- products ---

func (b *Backend) listProducts(w http.ResponseWriter, r *http.Request) {
	list := b.Products()
	sort.Slice(list, func(i, j int) bool { return list[i].ProductID < list[j].ProductID })
	b.ok(w, r, http.StatusOK, "200-OK", "상품 목록 조회 성공", list)
}

func (b *Backend) getProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	b.mu.Lock()
	p, found := b.products[id]
	b.mu.Unlock()
	if !found {
		httputil.WriteError(w, r, apperrors.NotFound("존재하지 않는 상품입니다."), nil)
		return
	}
	b.ok(w, r, http.StatusOK, "200-OK", "상품 조회 성공", p)
}

type productBody struct {
	ProductName  string `json:"productName" validate:"required"`
	Price        int64  `json:"price" validate:"gte=0"`
	Description  string `json:"description"`
	ProductImage string `json:"productImage"`
	Stock        int    `json:"stock" validate:"gte=0"`
}

func (p productBody) product() domain.Product {
	return domain.Product{
		ProductName:  p.ProductName,
		Price:        p.Price,
		Description:  p.Description,
		ProductImage: p.ProductImage,
		Stock:        p.Stock,
	}
}

func (b *Backend) createProduct(w http.ResponseWriter, r *http.Request) {
	var body productBody
	if !decode(w, r, &body) {
		return
	}
	p := b.AddProduct(body.product())
	b.ok(w, r, http.StatusCreated, "201-CREATED", "상품이 등록되었습니다.", p)
}

func (b *Backend) updateProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var body productBody
	if !decode(w, r, &body) {
		return
	}

	b.mu.Lock()
	old, found := b.products[id]
	if !found {
		b.mu.Unlock()
		httputil.WriteError(w, r, apperrors.NotFound("존재하지 않는 상품입니다."), nil)
		return
	}
	p := body.product()
	p.ProductID, p.CreatedAt, p.OrderCount = id, old.CreatedAt, old.OrderCount
	b.products[id] = p
	b.mu.Unlock()

	b.ok(w, r, http.StatusOK, "200-OK", "상품이 수정되었습니다.", p)
}

func (b *Backend) deleteProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	b.mu.Lock()
	_, found := b.products[id]
	delete(b.products, id)
	b.mu.Unlock()
	if !found {
		httputil.WriteError(w, r, apperrors.NotFound("존재하지 않는 상품입니다."), nil)
		return
	}
	b.ok(w, r, http.StatusOK, "200-OK", "상품이 삭제되었습니다.", nil)
}

// --- wishlists ---

// wishView is the backend's wishlist row, which names the price productPrice.
type wishView struct {
	WishID       int64  `json:"wishId"`
	ProductID    int64  `json:"productId"`
	ProductName  string `json:"productName"`
	ProductPrice int64  `json:"productPrice"`
	ProductImage string `json:"productImage,omitempty"`
	Quantity     int    `json:"quantity"`
}

func viewOf(e domain.WishlistEntry) wishView {
	return wishView{
		WishID:       e.WishID,
		ProductID:    e.ProductID,
		ProductName:  e.ProductName,
		ProductPrice: e.Price,
		ProductImage: e.ProductImage,
		Quantity:     e.Quantity,
	}
}

func ownsPath(w http.ResponseWriter, r *http.Request) (string, bool) {
	email := chi.URLParam(r, "email")
	if caller(r).Email != email {
		httputil.WriteStatus(w, http.StatusForbidden)
		return "", false
	}
	return email, true
}

func (b *Backend) listWishes(w http.ResponseWriter, r *http.Request) {
	email, ok := ownsPath(w, r)
	if !ok {
		return
	}
	views := []wishView{}
	for _, e := range b.Wishlist(email) {
		views = append(views, viewOf(e))
	}
	b.ok(w, r, http.StatusOK, "200-1", "위시리스트 조회 성공", views)
}

// addWish always creates a new row, as the real service does; merging
// duplicates is the client's job.
func (b *Backend) addWish(w http.ResponseWriter, r *http.Request) {
	email, ok := ownsPath(w, r)
	if !ok {
		return
	}
	var body domain.AddWishlistRequest
	if !decode(w, r, &body) {
		return
	}

	b.mu.Lock()
	p, found := b.products[body.ProductID]
	if !found {
		b.mu.Unlock()
		httputil.WriteError(w, r, apperrors.NotFound("존재하지 않는 상품입니다."), nil)
		return
	}
	b.seq++
	entry := domain.WishlistEntry{
		WishID:       b.seq,
		ProductID:    p.ProductID,
		ProductName:  p.ProductName,
		Price:        p.Price,
		ProductImage: p.ProductImage,
		Quantity:     body.Quantity,
	}
	b.wishes[email] = append(b.wishes[email], entry)
	b.mu.Unlock()

	b.ok(w, r, http.StatusCreated, "201-1", "위시리스트에 추가되었습니다.", viewOf(entry))
}

func (b *Backend) updateWish(w http.ResponseWriter, r *http.Request) {
	email, ok := ownsPath(w, r)
	if !ok {
		return
	}
	wishID, ok := pathID(w, r, "wishId")
	if !ok {
		return
	}
	var body domain.UpdateWishlistRequest
	if !decode(w, r, &body) {
		return
	}

	b.mu.Lock()
	list := b.wishes[email]
	for i := range list {
		if list[i].WishID == wishID {
			list[i].Quantity = body.Quantity
			entry := list[i]
			b.mu.Unlock()
			b.ok(w, r, http.StatusOK, "200-1", "수량이 변경되었습니다.", viewOf(entry))
			return
		}
	}
	b.mu.Unlock()
	httputil.WriteError(w, r, apperrors.NotFound("위시리스트 항목이 존재하지 않습니다."), nil)
}

func (b *Backend) removeWish(w http.ResponseWriter, r *http.Request) {
	email, ok := ownsPath(w, r)
	if !ok {
		return
	}
	wishID, ok := pathID(w, r, "wishId")
	if !ok {
		return
	}

	b.mu.Lock()
	list := b.wishes[email]
	for i := range list {
		if list[i].WishID == wishID {
			b.wishes[email] = append(list[:i:i], list[i+1:]...)
			b.mu.Unlock()
			b.ok(w, r, http.StatusOK, "200-1", "위시리스트에서 삭제되었습니다.", nil)
			return
		}
	}
	b.mu.Unlock()
	httputil.WriteError(w, r, apperrors.NotFound("위시리스트 항목이 존재하지 않습니다."), nil)
}

// --- orders ---

func (b *Backend) writeOrder(w http.ResponseWriter, r *http.Request) {
	var body domain.OrderRequest
	if !decode(w, r, &body) {
		return
	}
	if u := caller(r); u.Email != body.UserEmail {
		httputil.WriteStatus(w, http.StatusForbidden)
		return
	}

	b.mu.Lock()
	acct := b.users[body.UserEmail]
	order := domain.Order{
		User:        acct.Name,
		Email:       body.UserEmail,
		Address:     body.DeliveryAddress,
		OrderStatus: domain.OrderPending,
		CreateDate:  time.Now().Format("2006-01-02T15:04:05"),
	}
	var names []string
	for _, li := range body.LineItems {
		p, found := b.products[li.ProductID]
		if !found {
			b.mu.Unlock()
			httputil.WriteError(w, r, apperrors.NotFound("존재하지 않는 상품입니다."), nil)
			return
		}
		b.seq++
		line := p.Price * int64(li.Quantity)
		order.OrderItems = append(order.OrderItems, domain.OrderItem{
			OrderItemID:  b.seq,
			OrderCount:   li.Quantity,
			ProductPrice: p.Price,
			TotalPrice:   line,
		})
		order.OrderCount += li.Quantity
		order.TotalPrice += line
		names = append(names, p.ProductName)

		p.OrderCount += li.Quantity
		b.products[p.ProductID] = p
	}
	order.ProductName = strings.Join(names, ", ")
	b.seq++
	order.OrderID = b.seq
	b.orders[order.OrderID] = order
	b.mu.Unlock()

	b.ok(w, r, http.StatusCreated, "201-CREATED", "주문이 완료되었습니다.", []domain.Order{order})
}

func (b *Backend) ordersByEmail(w http.ResponseWriter, r *http.Request) {
	email := r.URL.Query().Get("email")
	if u := caller(r); u.Email != email && u.Role != domain.RoleAdmin {
		httputil.WriteStatus(w, http.StatusForbidden)
		return
	}
	b.ok(w, r, http.StatusOK, "200-OK", "주문 목록 조회 성공", b.filterOrders(func(o domain.Order) bool {
		return o.Email == email
	}))
}

func (b *Backend) ordersToday(w http.ResponseWriter, r *http.Request) {
	today := time.Now().Format("2006-01-02")
	b.ok(w, r, http.StatusOK, "200-OK", "오늘 주문 조회 성공", b.filterOrders(func(o domain.Order) bool {
		return strings.HasPrefix(o.CreateDate, today)
	}))
}

func (b *Backend) filterOrders(keep func(domain.Order) bool) []domain.Order {
	out := []domain.Order{}
	for _, o := range b.Orders() {
		if keep(o) {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OrderID < out[j].OrderID })
	return out
}

func (b *Backend) lookupOrder(w http.ResponseWriter, r *http.Request, id int64) (domain.Order, bool) {
	b.mu.Lock()
	o, found := b.orders[id]
	b.mu.Unlock()
	if !found {
		httputil.WriteError(w, r, apperrors.NotFound("주문을 찾을 수 없습니다."), nil)
		return o, false
	}
	if u := caller(r); u.Email != o.Email && u.Role != domain.RoleAdmin {
		httputil.WriteStatus(w, http.StatusForbidden)
		return o, false
	}
	return o, true
}

func (b *Backend) orderDetail(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "orderId")
	if !ok {
		return
	}
	o, ok := b.lookupOrder(w, r, id)
	if !ok {
		return
	}
	b.ok(w, r, http.StatusOK, "200-OK", "주문 조회 성공", o)
}

func (b *Backend) modifyOrder(w http.ResponseWriter, r *http.Request) {
	var body domain.StatusUpdate
	if !decode(w, r, &body) {
		return
	}
	o, ok := b.lookupOrder(w, r, body.OrderID)
	if !ok {
		return
	}
	o.OrderStatus = body.OrderStatus
	o.DeliveryStatus = body.OrderStatus == domain.OrderCompleted
	o.ModifiedDate = time.Now().Format("2006-01-02T15:04:05")

	b.mu.Lock()
	b.orders[o.OrderID] = o
	b.mu.Unlock()

	b.ok(w, r, http.StatusOK, "200-OK", "주문 상태가 변경되었습니다.", o)
}

func (b *Backend) deleteOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "orderId")
	if !ok {
		return
	}
	if _, ok := b.lookupOrder(w, r, id); !ok {
		return
	}
	b.mu.Lock()
	delete(b.orders, id)
	b.mu.Unlock()

	b.ok(w, r, http.StatusOK, "200-OK", "주문이 취소되었습니다.", nil)
}
