package grpc

import (
	"context"

	"google.golang.org/grpc"
)

const serviceName = "meetdesk.v1.SchedulingService"

// SchedulingServiceServer is the server API for meetdesk.v1.SchedulingService.
type SchedulingServiceServer interface {
	BookAppointment(context.Context, *BookAppointmentRequest) (*AppointmentReply, error)
	RescheduleAppointment(context.Context, *RescheduleAppointmentRequest) (*AppointmentReply, error)
	TransitionAppointment(context.Context, *TransitionAppointmentRequest) (*AppointmentReply, error)
	GetAppointment(context.Context, *GetAppointmentRequest) (*AppointmentReply, error)
	ListAppointments(*ListAppointmentsRequest, grpc.ServerStreamingServer[Appointment]) error
	GetSummary(context.Context, *GetSummaryRequest) (*SummaryReply, error)
	AddWindow(context.Context, *AddWindowRequest) (*WindowReply, error)
	RemoveWindow(context.Context, *RemoveWindowRequest) (*RemoveWindowReply, error)
	SetWindowActive(context.Context, *SetWindowActiveRequest) (*WindowReply, error)
	ListWindows(context.Context, *ListWindowsRequest) (*ListWindowsReply, error)
	CheckAvailability(context.Context, *CheckAvailabilityRequest) (*CheckAvailabilityReply, error)
	ListOpenSlots(context.Context, *ListOpenSlotsRequest) (*ListOpenSlotsReply, error)
}

func fullMethod(method string) string {
	return "/" + serviceName + "/" + method
}

func unary[Req, Res any](method string, call func(SchedulingServiceServer, context.Context, *Req) (*Res, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: method,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(SchedulingServiceServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod(method)}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(SchedulingServiceServer), ctx, req.(*Req))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

func listAppointmentsHandler(srv any, stream grpc.ServerStream) error {
	in := new(ListAppointmentsRequest)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}
	return srv.(SchedulingServiceServer).ListAppointments(in, &grpc.GenericServerStream[ListAppointmentsRequest, Appointment]{ServerStream: stream})
}

var SchedulingServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*SchedulingServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("BookAppointment", SchedulingServiceServer.BookAppointment),
		unary("RescheduleAppointment", SchedulingServiceServer.RescheduleAppointment),
		unary("TransitionAppointment", SchedulingServiceServer.TransitionAppointment),
		unary("GetAppointment", SchedulingServiceServer.GetAppointment),
		unary("GetSummary", SchedulingServiceServer.GetSummary),
		unary("AddWindow", SchedulingServiceServer.AddWindow),
		unary("RemoveWindow", SchedulingServiceServer.RemoveWindow),
		unary("SetWindowActive", SchedulingServiceServer.SetWindowActive),
		unary("ListWindows", SchedulingServiceServer.ListWindows),
		unary("CheckAvailability", SchedulingServiceServer.CheckAvailability),
		unary("ListOpenSlots", SchedulingServiceServer.ListOpenSlots),
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "ListAppointments",
			Handler:       listAppointmentsHandler,
			ServerStreams: true,
		},
	},
	Metadata: "meetdesk/v1/scheduling.proto",
}

func RegisterSchedulingServiceServer(s grpc.ServiceRegistrar, srv SchedulingServiceServer) {
	s.RegisterService(&SchedulingServiceDesc, srv)
}

// Client calls meetdesk.v1.SchedulingService using the JSON codec.
type Client struct {
	cc grpc.ClientConnInterface
}

func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

func invoke[Res any](ctx context.Context, c *Client, method string, in any, opts []grpc.CallOption) (*Res, error) {
	out := new(Res)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(codecName)}, opts...)
	if err := c.cc.Invoke(ctx, fullMethod(method), in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) BookAppointment(ctx context.Context, in *BookAppointmentRequest, opts ...grpc.CallOption) (*AppointmentReply, error) {
	return invoke[AppointmentReply](ctx, c, "BookAppointment", in, opts)
}

func (c *Client) RescheduleAppointment(ctx context.Context, in *RescheduleAppointmentRequest, opts ...grpc.CallOption) (*AppointmentReply, error) {
	return invoke[AppointmentReply](ctx, c, "RescheduleAppointment", in, opts)
}

func (c *Client) TransitionAppointment(ctx context.Context, in *TransitionAppointmentRequest, opts ...grpc.CallOption) (*AppointmentReply, error) {
	return invoke[AppointmentReply](ctx, c, "TransitionAppointment", in, opts)
}

func (c *Client) GetAppointment(ctx context.Context, in *GetAppointmentRequest, opts ...grpc.CallOption) (*AppointmentReply, error) {
	return invoke[AppointmentReply](ctx, c, "GetAppointment", in, opts)
}

func (c *Client) GetSummary(ctx context.Context, in *GetSummaryRequest, opts ...grpc.CallOption) (*SummaryReply, error) {
	return invoke[SummaryReply](ctx, c, "GetSummary", in, opts)
}

func (c *Client) AddWindow(ctx context.Context, in *AddWindowRequest, opts ...grpc.CallOption) (*WindowReply, error) {
	return invoke[WindowReply](ctx, c, "AddWindow", in, opts)
}

func (c *Client) RemoveWindow(ctx context.Context, in *RemoveWindowRequest, opts ...grpc.CallOption) (*RemoveWindowReply, error) {
	return invoke[RemoveWindowReply](ctx, c, "RemoveWindow", in, opts)
}

func (c *Client) SetWindowActive(ctx context.Context, in *SetWindowActiveRequest, opts ...grpc.CallOption) (*WindowReply, error) {
	return invoke[WindowReply](ctx, c, "SetWindowActive", in, opts)
}

func (c *Client) ListWindows(ctx context.Context, in *ListWindowsRequest, opts ...grpc.CallOption) (*ListWindowsReply, error) {
	return invoke[ListWindowsReply](ctx, c, "ListWindows", in, opts)
}

func (c *Client) CheckAvailability(ctx context.Context, in *CheckAvailabilityRequest, opts ...grpc.CallOption) (*CheckAvailabilityReply, error) {
	return invoke[CheckAvailabilityReply](ctx, c, "CheckAvailability", in, opts)
}

func (c *Client) ListOpenSlots(ctx context.Context, in *ListOpenSlotsRequest, opts ...grpc.CallOption) (*ListOpenSlotsReply, error) {
	return invoke[ListOpenSlotsReply](ctx, c, "ListOpenSlots", in, opts)
}

func (c *Client) ListAppointments(ctx context.Context, in *ListAppointmentsRequest, opts ...grpc.CallOption) (grpc.ServerStreamingClient[Appointment], error) {
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(codecName)}, opts...)
	stream, err := c.cc.NewStream(ctx, &SchedulingServiceDesc.Streams[0], fullMethod("ListAppointments"), opts...)
	if err != nil {
		return nil, err
	}
	x := &grpc.GenericClientStream[ListAppointmentsRequest, Appointment]{ClientStream: stream}
	if err := x.ClientStream.SendMsg(in); err != nil {
		return nil, err
	}
	if err := x.ClientStream.CloseSend(); err != nil {
		return nil, err
	}
	return x, nil
}
