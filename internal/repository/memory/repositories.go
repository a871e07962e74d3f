package memory

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/spec-kit/dispatch-service/internal/domain"
	"github.com/spec-kit/dispatch-service/internal/repository"
)

type ticketRepository struct {
	v view
}

func (r *ticketRepository) Create(_ context.Context, ticket *domain.Ticket) error {
	return r.v.write("tickets.create", func(d *dataset) error {
		for _, existing := range d.tickets {
			if existing.ExternalKey == ticket.ExternalKey {
				return fmt.Errorf("%w: tickets_external_key_key", repository.ErrDuplicate)
			}
		}
		now := r.v.now()
		ticket.ID = uuid.NewString()
		ticket.CreatedAt = now
		ticket.UpdatedAt = now
		d.tickets[ticket.ID] = *ticket
		return nil
	})
}

func (r *ticketRepository) Update(_ context.Context, ticket *domain.Ticket) error {
	return r.v.write("tickets.update", func(d *dataset) error {
		current, ok := d.tickets[ticket.ID]
		if !ok {
			return repository.ErrNotFound
		}
		ticket.ExternalKey = current.ExternalKey
		ticket.CompanyID = current.CompanyID
		ticket.CreatedAt = current.CreatedAt
		ticket.UpdatedAt = r.v.now()
		d.tickets[ticket.ID] = *ticket
		return nil
	})
}

func (r *ticketRepository) GetByID(_ context.Context, id string) (*domain.Ticket, error) {
	var out domain.Ticket
	err := r.v.read(func(d *dataset) error {
		ticket, ok := d.tickets[id]
		if !ok {
			return repository.ErrNotFound
		}
		out = ticket
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// LockByID needs no extra work; the transaction already runs alone.
func (r *ticketRepository) LockByID(ctx context.Context, id string) (*domain.Ticket, error) {
	return r.GetByID(ctx, id)
}

func (r *ticketRepository) ListWithFilter(_ context.Context, filter repository.TicketFilter) ([]domain.Ticket, error) {
	var result []domain.Ticket
	err := r.v.read(func(d *dataset) error {
		search := ""
		if filter.SearchTerm != nil {
			search = strings.ToLower(strings.TrimSpace(*filter.SearchTerm))
		}
		for _, ticket := range d.tickets {
			if filter.CompanyID != nil && ticket.CompanyID != *filter.CompanyID {
				continue
			}
			if filter.AssignedStaffID != nil && (ticket.AssignedStaffID == nil || *ticket.AssignedStaffID != *filter.AssignedStaffID) {
				continue
			}
			if len(filter.Statuses) > 0 && !contains(filter.Statuses, ticket.Status) {
				continue
			}
			if len(filter.Priorities) > 0 && !contains(filter.Priorities, ticket.Priority) {
				continue
			}
			if filter.CreatedFrom != nil && ticket.CreatedAt.Before(*filter.CreatedFrom) {
				continue
			}
			if filter.CreatedTo != nil && ticket.CreatedAt.After(*filter.CreatedTo) {
				continue
			}
			if search != "" &&
				!strings.Contains(strings.ToLower(ticket.Title), search) &&
				!strings.Contains(strings.ToLower(ticket.Description), search) {
				continue
			}
			result = append(result, ticket)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].UpdatedAt.Equal(result[j].UpdatedAt) {
			return result[i].UpdatedAt.After(result[j].UpdatedAt)
		}
		return result[i].ID < result[j].ID
	})
	return page(result, filter.Limit, filter.Offset), nil
}

type workOrderRepository struct {
	v view
}

func (r *workOrderRepository) Create(_ context.Context, order *domain.WorkOrder) error {
	return r.v.write("work_orders.create", func(d *dataset) error {
		if _, ok := d.tickets[order.TicketID]; !ok {
			return fmt.Errorf("work order references unknown ticket %s", order.TicketID)
		}
		if order.Status.Active() {
			for _, existing := range d.workOrders {
				if existing.TicketID == order.TicketID && existing.Status.Active() {
					return fmt.Errorf("%w: uq_work_orders_active_ticket", repository.ErrDuplicate)
				}
			}
		}
		now := r.v.now()
		order.ID = uuid.NewString()
		order.CreatedAt = now
		order.UpdatedAt = now
		d.workOrders[order.ID] = *order
		return nil
	})
}

func (r *workOrderRepository) Update(_ context.Context, order *domain.WorkOrder) error {
	return r.v.write("work_orders.update", func(d *dataset) error {
		current, ok := d.workOrders[order.ID]
		if !ok {
			return repository.ErrNotFound
		}
		order.TicketID = current.TicketID
		order.Priority = current.Priority
		order.CreatedBy = current.CreatedBy
		order.CreatedAt = current.CreatedAt
		order.UpdatedAt = r.v.now()
		d.workOrders[order.ID] = *order
		return nil
	})
}

func (r *workOrderRepository) GetByID(_ context.Context, id string) (*domain.WorkOrder, error) {
	var out domain.WorkOrder
	err := r.v.read(func(d *dataset) error {
		order, ok := d.workOrders[id]
		if !ok {
			return repository.ErrNotFound
		}
		out = order
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *workOrderRepository) LockByID(ctx context.Context, id string) (*domain.WorkOrder, error) {
	return r.GetByID(ctx, id)
}

func (r *workOrderRepository) TryClaim(_ context.Context, id string, expected, next domain.WorkOrderStatus) (bool, error) {
	claimed := false
	err := r.v.write("work_orders.claim", func(d *dataset) error {
		order, ok := d.workOrders[id]
		if !ok || order.Status != expected {
			return nil
		}
		order.Status = next
		order.UpdatedAt = r.v.now()
		d.workOrders[id] = order
		claimed = true
		return nil
	})
	return claimed, err
}

func (r *workOrderRepository) FindActiveByTicket(_ context.Context, ticketID string) (*domain.WorkOrder, error) {
	var out *domain.WorkOrder
	err := r.v.read(func(d *dataset) error {
		for _, order := range d.workOrders {
			if order.TicketID == ticketID && order.Status.Active() {
				found := order
				out = &found
				return nil
			}
		}
		return repository.ErrNotFound
	})
	return out, err
}

func (r *workOrderRepository) ListWithFilter(_ context.Context, filter repository.WorkOrderFilter) ([]domain.WorkOrder, error) {
	var result []domain.WorkOrder
	err := r.v.read(func(d *dataset) error {
		for _, order := range d.workOrders {
			if filter.TicketID != nil && order.TicketID != *filter.TicketID {
				continue
			}
			if len(filter.Statuses) > 0 && !contains(filter.Statuses, order.Status) {
				continue
			}
			if filter.TechnicianID != nil {
				if _, ok := domain.FindMember(d.teams[order.ID], *filter.TechnicianID); !ok {
					continue
				}
			}
			result = append(result, order)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].Deadline.Equal(result[j].Deadline) {
			return result[i].Deadline.Before(result[j].Deadline)
		}
		return result[i].ID < result[j].ID
	})
	return page(result, filter.Limit, filter.Offset), nil
}

type teamRepository struct {
	v view
}

func (r *teamRepository) Add(_ context.Context, member *domain.WorkOrderTechnician) error {
	return r.v.write("team.add", func(d *dataset) error {
		if _, ok := d.workOrders[member.WorkOrderID]; !ok {
			return fmt.Errorf("membership references unknown work order %s", member.WorkOrderID)
		}
		team := d.teams[member.WorkOrderID]
		for _, existing := range team {
			if existing.TechnicianID == member.TechnicianID {
				return fmt.Errorf("%w: work_order_technicians_pkey", repository.ErrDuplicate)
			}
			if member.Role == domain.TechnicianRolePrimary && existing.Role == domain.TechnicianRolePrimary {
				return fmt.Errorf("%w: uq_work_order_technicians_primary", repository.ErrDuplicate)
			}
		}
		member.CreatedAt = r.v.now()
		d.teams[member.WorkOrderID] = append(team, *member)
		return nil
	})
}

func (r *teamRepository) Update(_ context.Context, member *domain.WorkOrderTechnician) error {
	return r.v.write("team.update", func(d *dataset) error {
		team := d.teams[member.WorkOrderID]
		for i := range team {
			if team[i].TechnicianID == member.TechnicianID {
				team[i].Status = member.Status
				team[i].AcceptedAt = member.AcceptedAt
				team[i].CompletedAt = member.CompletedAt
				team[i].Notes = member.Notes
				return nil
			}
		}
		return repository.ErrNotFound
	})
}

func (r *teamRepository) Remove(_ context.Context, workOrderID, technicianID string) error {
	return r.v.write("team.remove", func(d *dataset) error {
		team := d.teams[workOrderID]
		for i := range team {
			if team[i].TechnicianID == technicianID {
				d.teams[workOrderID] = append(team[:i:i], team[i+1:]...)
				return nil
			}
		}
		return repository.ErrNotFound
	})
}

func (r *teamRepository) ListByWorkOrder(_ context.Context, workOrderID string) ([]domain.WorkOrderTechnician, error) {
	var result []domain.WorkOrderTechnician
	err := r.v.read(func(d *dataset) error {
		result = append(result, d.teams[workOrderID]...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].Role == domain.TechnicianRolePrimary && result[j].Role != domain.TechnicianRolePrimary
	})
	return result, nil
}

type auditRepository struct {
	v view
}

func (r *auditRepository) Append(_ context.Context, entry *domain.AuditLogEntry) error {
	return r.v.write("audit.append", func(d *dataset) error {
		if entry.Scope != domain.AuditScopeTicket && entry.Scope != domain.AuditScopeWorkOrder {
			return fmt.Errorf("unknown audit scope %q", entry.Scope)
		}
		d.auditSeq++
		entry.ID = strconv.FormatInt(d.auditSeq, 10)
		entry.CreatedAt = r.v.now()
		d.audit = append(d.audit, *entry)
		return nil
	})
}

func (r *auditRepository) ListBySubject(_ context.Context, scope domain.AuditScope, subjectID string) ([]domain.AuditLogEntry, error) {
	var result []domain.AuditLogEntry
	err := r.v.read(func(d *dataset) error {
		for _, entry := range d.audit {
			if entry.Scope == scope && entry.SubjectID == subjectID {
				result = append(result, entry)
			}
		}
		return nil
	})
	return result, err
}

type staffRepository struct {
	v view
}

func (r *staffRepository) Create(_ context.Context, staff *domain.StaffMember) error {
	return r.v.write("staff.create", func(d *dataset) error {
		for _, existing := range d.staff {
			if strings.EqualFold(existing.Email, staff.Email) {
				return fmt.Errorf("%w: staff_members_email_key", repository.ErrDuplicate)
			}
		}
		now := r.v.now()
		staff.ID = uuid.NewString()
		staff.CreatedAt = now
		staff.UpdatedAt = now
		d.staff[staff.ID] = *staff
		return nil
	})
}

func (r *staffRepository) GetByID(_ context.Context, id string) (*domain.StaffMember, error) {
	var out domain.StaffMember
	err := r.v.read(func(d *dataset) error {
		staff, ok := d.staff[id]
		if !ok {
			return repository.ErrNotFound
		}
		out = staff
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *staffRepository) List(_ context.Context, filter repository.StaffFilter) ([]domain.StaffMember, error) {
	var result []domain.StaffMember
	err := r.v.read(func(d *dataset) error {
		for _, staff := range d.staff {
			if filter.Role != nil && staff.Role != *filter.Role {
				continue
			}
			if filter.Active != nil && staff.Active != *filter.Active {
				continue
			}
			result = append(result, staff)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.Before(result[j].CreatedAt)
		}
		return result[i].ID < result[j].ID
	})
	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	return page(result, limit, filter.Offset), nil
}

type companyRepository struct {
	v view
}

func (r *companyRepository) Create(_ context.Context, company *domain.Company) error {
	return r.v.write("companies.create", func(d *dataset) error {
		now := r.v.now()
		company.ID = uuid.NewString()
		company.CreatedAt = now
		company.UpdatedAt = now
		d.companies[company.ID] = *company
		return nil
	})
}

func (r *companyRepository) GetByID(_ context.Context, id string) (*domain.Company, error) {
	var out domain.Company
	err := r.v.read(func(d *dataset) error {
		company, ok := d.companies[id]
		if !ok {
			return repository.ErrNotFound
		}
		out = company
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

type notificationRepository struct {
	v view
}

func (r *notificationRepository) Create(_ context.Context, n *domain.Notification) error {
	return r.v.write("notifications.create", func(d *dataset) error {
		n.ID = uuid.NewString()
		n.Read = false
		n.CreatedAt = r.v.now()
		d.notifications = append(d.notifications, *n)
		return nil
	})
}

func (r *notificationRepository) ListByRecipient(_ context.Context, recipient domain.Recipient, unreadOnly bool, limit, offset int) ([]domain.Notification, error) {
	var result []domain.Notification
	err := r.v.read(func(d *dataset) error {
		for i := len(d.notifications) - 1; i >= 0; i-- {
			n := d.notifications[i]
			if n.Recipient != recipient || (unreadOnly && n.Read) {
				continue
			}
			result = append(result, n)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return page(result, limit, offset), nil
}

func (r *notificationRepository) MarkRead(_ context.Context, id string, recipient domain.Recipient) error {
	return r.v.write("notifications.mark_read", func(d *dataset) error {
		for i := range d.notifications {
			if d.notifications[i].ID == id && d.notifications[i].Recipient == recipient {
				d.notifications[i].Read = true
				return nil
			}
		}
		return repository.ErrNotFound
	})
}

func contains[T comparable](values []T, target T) bool {
	for _, v := range values {
		if v == target {
			return true
		}
	}
	return false
}

func page[T any](items []T, limit, offset int) []T {
	if limit <= 0 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	if offset >= len(items) {
		return nil
	}
	end := offset + limit
	if end > len(items) {
		end = len(items)
	}
	return items[offset:end]
}
